//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"image"

	"gocv.io/x/gocv"

	"github.com/hannes/docshield/pii"
)

// DocumentRegionDetector finds candidate regions on a scanned document:
// dense text bands, card-shaped sub-documents, and faces. It implements
// pii.VisionEngine and feeds the RegionClassifier.
type DocumentRegionDetector struct {
	MinAreaRatio    float64
	MaxSide         int
	CardAspectMin   float64
	CardAspectMax   float64
	FaceCascadePath string
}

func NewDocumentRegionDetector(faceCascadePath string) *DocumentRegionDetector {
	return &DocumentRegionDetector{
		MinAreaRatio:    0.0005,
		MaxSide:         1600,
		CardAspectMin:   1.3,
		CardAspectMax:   1.8,
		FaceCascadePath: faceCascadePath,
	}
}

// Available reports that this build carries OpenCV support.
func (d *DocumentRegionDetector) Available() bool { return true }

func (d *DocumentRegionDetector) DetectRegions(ctx context.Context, imageData []byte) ([]pii.VisionRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		if !mat.Empty() {
			mat.Close()
		}
		return nil, errors.New("failed to decode image")
	}
	defer mat.Close()

	// Normalize size so the area thresholds behave consistently.
	scale := 1.0
	if mat.Cols() > d.MaxSide || mat.Rows() > d.MaxSide {
		longest := mat.Cols()
		if mat.Rows() > longest {
			longest = mat.Rows()
		}
		scale = float64(d.MaxSide) / float64(longest)
		resized := gocv.NewMat()
		gocv.Resize(mat, &resized, image.Pt(int(float64(mat.Cols())*scale), int(float64(mat.Rows())*scale)), 0, 0, gocv.InterpolationArea)
		mat.Close()
		mat = resized
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	regions := d.textRegions(mat, gray, scale)
	regions = append(regions, d.faceRegions(gray, scale)...)
	return regions, nil
}

// textRegions closes gaps between glyphs with a wide morphological kernel so
// each text band becomes one contour. Card-shaped contours are reported as
// documents instead.
func (d *DocumentRegionDetector) textRegions(mat, gray gocv.Mat, scale float64) []pii.VisionRegion {
	grad := gocv.NewMat()
	defer grad.Close()
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	gocv.MorphologyEx(gray, &grad, gocv.MorphGradient, kernel)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(grad, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	connected := gocv.NewMat()
	defer connected.Close()
	wide := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(15, 1))
	defer wide.Close()
	gocv.MorphologyEx(binary, &connected, gocv.MorphClose, wide)

	contours := gocv.FindContours(connected, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := float64(mat.Cols()*mat.Rows()) * d.MinAreaRatio
	var out []pii.VisionRegion
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		area := float64(rect.Dx() * rect.Dy())
		if area < minArea || rect.Dy() == 0 {
			continue
		}

		kind := pii.RegionText
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		confidence := 0.6
		if aspect >= d.CardAspectMin && aspect <= d.CardAspectMax && area > minArea*20 {
			kind = pii.RegionDocument
			confidence = 0.7
		}

		out = append(out, pii.VisionRegion{
			Kind:       kind,
			Confidence: confidence,
			Box:        scaledBox(rect, scale),
		})
	}
	return out
}

func (d *DocumentRegionDetector) faceRegions(gray gocv.Mat, scale float64) []pii.VisionRegion {
	if d.FaceCascadePath == "" {
		return nil
	}
	classifier := gocv.NewCascadeClassifier()
	defer classifier.Close()
	if !classifier.Load(d.FaceCascadePath) {
		return nil
	}

	var out []pii.VisionRegion
	for _, rect := range classifier.DetectMultiScale(gray) {
		out = append(out, pii.VisionRegion{
			Kind:       pii.RegionFace,
			Confidence: 0.8,
			Box:        scaledBox(rect, scale),
		})
	}
	return out
}

// scaledBox maps a rectangle from the resized image back to source pixels.
func scaledBox(rect image.Rectangle, scale float64) pii.BoundingBox {
	return pii.BoundingBox{
		X:      float64(rect.Min.X) / scale,
		Y:      float64(rect.Min.Y) / scale,
		Width:  float64(rect.Dx()) / scale,
		Height: float64(rect.Dy()) / scale,
	}
}
