package visual

import (
	"fmt"

	"gocv.io/x/gocv"
)

const (
	orbFeatures       = 3000
	orbRatioTestMax   = 0.75
	orbMinGoodMatches = 10
	orbRansacThresh   = 5.0
	// orbScoreThreshold is the minimum inlier fraction, relative to the
	// reference image's keypoints, to accept a geometric match.
	orbScoreThreshold = 0.12
)

// orbVerify runs the classic keypoint pipeline: ORB detection in both
// grayscale images, Hamming KNN descriptor matching with a ratio test, then
// a RANSAC homography fit over the surviving matches. The score is the
// inlier count over the reference image's keypoint count.
func orbVerify(refPath, candPath string) (bool, float64, string) {
	ref := gocv.IMRead(refPath, gocv.IMReadGrayScale)
	defer ref.Close()
	cand := gocv.IMRead(candPath, gocv.IMReadGrayScale)
	defer cand.Close()

	if ref.Empty() || cand.Empty() {
		return false, 0, "image unreadable"
	}

	orb := gocv.NewORBWithParams(orbFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	kpRef, desRef := orb.DetectAndCompute(ref, mask)
	defer desRef.Close()
	kpCand, desCand := orb.DetectAndCompute(cand, mask)
	defer desCand.Close()

	if desRef.Empty() || desCand.Empty() {
		return false, 0, "no descriptors detected"
	}

	bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer bf.Close()

	matches := bf.KnnMatch(desRef, desCand, 2)

	var good []gocv.DMatch
	for _, pair := range matches {
		if len(pair) < 2 {
			continue
		}
		if pair[0].Distance < orbRatioTestMax*pair[1].Distance {
			good = append(good, pair[0])
		}
	}

	if len(good) < orbMinGoodMatches {
		return false, 0, fmt.Sprintf("only %d good matches (need %d)", len(good), orbMinGoodMatches)
	}

	src := gocv.NewMatWithSize(len(good), 1, gocv.MatTypeCV64FC2)
	defer src.Close()
	dst := gocv.NewMatWithSize(len(good), 1, gocv.MatTypeCV64FC2)
	defer dst.Close()

	for i, m := range good {
		src.SetDoubleAt(i, 0, kpRef[m.QueryIdx].X)
		src.SetDoubleAt(i, 1, kpRef[m.QueryIdx].Y)
		dst.SetDoubleAt(i, 0, kpCand[m.TrainIdx].X)
		dst.SetDoubleAt(i, 1, kpCand[m.TrainIdx].Y)
	}

	inlierMask := gocv.NewMat()
	defer inlierMask.Close()

	h := gocv.FindHomography(src, &dst, gocv.HomographyMethodRANSAC, orbRansacThresh, &inlierMask, 2000, 0.995)
	defer h.Close()

	if h.Empty() {
		return false, 0, "no homography found"
	}

	inliers := gocv.CountNonZero(inlierMask)
	refKeypoints := len(kpRef)
	if refKeypoints == 0 {
		refKeypoints = 1
	}
	score := float64(inliers) / float64(refKeypoints)

	if score < orbScoreThreshold {
		return false, score, fmt.Sprintf("inlier score %.3f below %.2f", score, orbScoreThreshold)
	}
	return true, score, ""
}
