//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"github.com/hannes/docshield/pii"
)

// DocumentRegionDetector without the gocv build tag is a stub; builds that
// need region detection must compile with -tags gocv and an OpenCV install.
type DocumentRegionDetector struct {
	MinAreaRatio    float64
	MaxSide         int
	CardAspectMin   float64
	CardAspectMax   float64
	FaceCascadePath string
}

func NewDocumentRegionDetector(faceCascadePath string) *DocumentRegionDetector {
	return &DocumentRegionDetector{FaceCascadePath: faceCascadePath}
}

// Available reports that this build has no OpenCV support.
func (d *DocumentRegionDetector) Available() bool { return false }

func (d *DocumentRegionDetector) DetectRegions(ctx context.Context, imageData []byte) ([]pii.VisionRegion, error) {
	_ = ctx
	_ = imageData
	return nil, errors.New("gocv build tag is not enabled")
}
