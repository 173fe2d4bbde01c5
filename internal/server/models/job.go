package models

// ThumbnailJob asks the worker to render derivatives for an uploaded image.
type ThumbnailJob struct {
	FileID int64 `json:"fileId"`
	UserID int64 `json:"userId"`
}

// WelcomeJob is published once per registration.
type WelcomeJob struct {
	UserID int64 `json:"userId"`
}

// ThumbnailSizes are the derivative widths rendered for every image.
var ThumbnailSizes = []int{500, 250, 100}
