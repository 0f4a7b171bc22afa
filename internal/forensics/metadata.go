package forensics

import (
	"fmt"
	"strings"

	"image-authenticity-service/internal/imaging"
	"image-authenticity-service/internal/models"
)

// generatorSignatures are software-tag substrings known to come from image
// generators or editors rather than camera firmware.
var generatorSignatures = []string{
	"photoshop",
	"gimp",
	"stable diffusion",
	"dall-e",
	"dalle",
	"midjourney",
	"firefly",
	"canva",
	"comfyui",
	"automatic1111",
	"flux",
}

// vendorTokens maps model-name substrings to the make they belong to. A
// model carrying another vendor's token is internally inconsistent metadata.
var vendorTokens = map[string]string{
	"iphone":  "apple",
	"ipad":    "apple",
	"pixel":   "google",
	"galaxy":  "samsung",
	"xperia":  "sony",
	"eos":     "canon",
	"lumix":   "panasonic",
	"coolpix": "nikon",
}

// MetadataDetector inspects capture metadata for the cheap high-precision
// signals: missing EXIF, generator software tags, and make/model mismatches.
type MetadataDetector struct{}

// Run produces the metadata finding. It never fails; missing metadata is
// the suspicious condition, not an error.
func (d MetadataDetector) Run(meta *imaging.CaptureMetadata) models.MetadataResult {
	if meta == nil {
		return models.MetadataResult{
			Suspicious: true,
			Reason:     "no metadata could be read",
		}
	}

	result := models.MetadataResult{
		Format:      meta.Format,
		Mode:        meta.Mode,
		Size:        []int{meta.Width, meta.Height},
		HasEXIF:     meta.HasEXIF,
		Software:    meta.Software,
		DeviceMake:  meta.DeviceMake,
		DeviceModel: meta.DeviceModel,
		DateTime:    meta.DateTime,
	}

	if !meta.HasEXIF {
		result.Suspicious = true
		result.Reason = "no embedded EXIF metadata"
		// A generator tag recovered from PNG text chunks is an even
		// stronger signal than bare absence.
		if sig := matchGenerator(meta.Software); sig != "" {
			result.Reason = fmt.Sprintf("generator signature in embedded text: %s", meta.Software)
		}
		return result
	}

	if sig := matchGenerator(meta.Software); sig != "" {
		result.Suspicious = true
		result.Reason = fmt.Sprintf("software tag indicates editing or generation: %s", meta.Software)
		return result
	}

	if reason := deviceInconsistency(meta.DeviceMake, meta.DeviceModel); reason != "" {
		result.Suspicious = true
		result.Reason = reason
		return result
	}

	return result
}

func matchGenerator(software string) string {
	if software == "" {
		return ""
	}
	lower := strings.ToLower(software)
	for _, sig := range generatorSignatures {
		if strings.Contains(lower, sig) {
			return sig
		}
	}
	return ""
}

// deviceInconsistency reports make/model combinations that no camera
// firmware would write.
func deviceInconsistency(make_, model string) string {
	if model != "" && make_ == "" {
		return fmt.Sprintf("device model %q present without a make", model)
	}
	if make_ == "" || model == "" {
		return ""
	}
	makeLower := strings.ToLower(make_)
	modelLower := strings.ToLower(model)
	for token, vendor := range vendorTokens {
		if strings.Contains(modelLower, token) && !strings.Contains(makeLower, vendor) {
			return fmt.Sprintf("device model %q incompatible with make %q", model, make_)
		}
	}
	return ""
}
