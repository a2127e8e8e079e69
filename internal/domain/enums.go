package domain

// ImageType represents the allowed image types for upload.
type ImageType string

const (
	ImageTypeJPG ImageType = "jpg"
	ImageTypePNG ImageType = "png"
	ImageTypeBMP ImageType = "bmp"
)

// AllowedImageTypes maps ImageType to its MIME content type.
var AllowedImageTypes = map[ImageType]string{
	ImageTypeJPG: "image/jpeg",
	ImageTypePNG: "image/png",
	ImageTypeBMP: "image/bmp",
}

// AllowedContentTypes maps sniffed MIME content types back to ImageType.
var AllowedContentTypes = map[string]ImageType{
	"image/jpeg": ImageTypeJPG,
	"image/png":  ImageTypePNG,
	"image/bmp":  ImageTypeBMP,
}

// AllowedExtensions maps file extensions (without dot) to ImageType.
var AllowedExtensions = map[string]ImageType{
	"jpg":  ImageTypeJPG,
	"jpeg": ImageTypeJPG,
	"png":  ImageTypePNG,
	"bmp":  ImageTypeBMP,
}

// Strategy selects how images are turned into records.
type Strategy string

const (
	// StrategyOCR runs local OCR, then a text model structures the text.
	StrategyOCR Strategy = "ocr"
	// StrategyVision sends the image straight to a vision model.
	StrategyVision Strategy = "vision"
)

// ValidStrategies lists the accepted strategy values.
var ValidStrategies = map[Strategy]bool{
	StrategyOCR:    true,
	StrategyVision: true,
}

// ResultStatus classifies a record against the remote store.
type ResultStatus string

const (
	ResultNew     ResultStatus = "new"
	ResultUpdated ResultStatus = "updated"
	ResultSkipped ResultStatus = "skipped"
	ResultError   ResultStatus = "error"
	ResultFailed  ResultStatus = "failed"
)

// RunStatus tracks where a run is in its lifecycle.
type RunStatus string

const (
	RunStatusUploaded  RunStatus = "uploaded"
	RunStatusExtracted RunStatus = "extracted"
	RunStatusSynced    RunStatus = "synced"
	RunStatusCleared   RunStatus = "cleared"
)

// Write operations against the remote store.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
)

// ExportFormat is a downloadable artifact format.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)
