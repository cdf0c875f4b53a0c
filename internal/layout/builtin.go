package layout

import "github.com/MeKo-Tech/cropocr/internal/region"

// Names of the built-in layouts.
const (
	Points3 = "points3"
	Rect2   = "rect2"
	Points1 = "points1"
)

// DefaultName is the layout used when none is configured.
const DefaultName = Points3

var (
	codeBar      = Field{Name: "Code Bar"}
	expediteur   = Field{Name: "Expediteur", Tokens: []string{"Expéditeur", "المرسل"}}
	destinataire = Field{Name: "Destinataire", Tokens: []string{"Destinataire", "المرسل إليه"}}
)

// Builtins returns fresh copies of the built-in layouts.
func Builtins() []Layout {
	return []Layout{
		{
			Name:         Points3,
			Description:  "Three regions of four clicks each: barcode, sender, recipient",
			Mode:         region.KindPoint,
			RegionSize:   4,
			Regions:      3,
			CanvasWidth:  500,
			CanvasHeight: 300,
			Fields:       cloneFields(codeBar, expediteur, destinataire),
		},
		{
			Name:         Rect2,
			Description:  "Two dragged rectangles: barcode, sender",
			Mode:         region.KindRectangle,
			RegionSize:   1,
			Regions:      2,
			CanvasWidth:  800,
			CanvasHeight: 600,
			Fields:       cloneFields(codeBar, expediteur),
		},
		{
			Name:        Points1,
			Description: "One region of four clicks on the native-size image, cropped without OCR",
			Mode:        region.KindPoint,
			RegionSize:  4,
			Regions:     1,
			Native:      true,
			CropOnly:    true,
			Fields:      cloneFields(Field{Name: "Crop"}),
		},
	}
}

func cloneFields(fields ...Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{Name: f.Name, Tokens: append([]string(nil), f.Tokens...)}
	}
	return out
}
