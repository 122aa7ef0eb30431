//go:build !cgo || !ocr

package ocr

func newTesseract(Config) Engine {
	return Unavailable{
		Engine: EngineTesseract,
		Reason: "binary built without cgo and the ocr build tag",
	}
}
