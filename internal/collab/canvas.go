package collab

// IconData describes an icon as fetched from the icon catalog. Either an
// inline SVG body or a URL is present.
type IconData struct {
	Name   string  `json:"name"`
	Prefix string  `json:"prefix"`
	Body   string  `json:"body,omitempty"`
	URL    string  `json:"url,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// CanvasIcon is an icon placed on the canvas.
type CanvasIcon struct {
	ID       string   `json:"id"`
	Icon     IconData `json:"icon"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Size     float64  `json:"size"`
	Color    string   `json:"color"`
	Rotation float64  `json:"rotation"`
	Opacity  float64  `json:"opacity"`
}

// TextElement is a styled text block on the canvas.
type TextElement struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	FontSize       float64 `json:"fontSize"`
	FontFamily     string  `json:"fontFamily"`
	FontWeight     string  `json:"fontWeight"`
	FontStyle      string  `json:"fontStyle"`
	TextDecoration string  `json:"textDecoration"`
	Color          string  `json:"color"`
	TextAlign      string  `json:"textAlign"`
	Opacity        float64 `json:"opacity"`
	Rotation       float64 `json:"rotation"`
	Effect         string  `json:"effect,omitempty"`
	LetterSpacing  float64 `json:"letterSpacing,omitempty"`
	LineHeight     float64 `json:"lineHeight,omitempty"`
	StrokeColor    string  `json:"strokeColor,omitempty"`
	StrokeWidth    float64 `json:"strokeWidth,omitempty"`
}

// ImageElement is a raster image placed on the canvas.
type ImageElement struct {
	ID       string  `json:"id"`
	Src      string  `json:"src"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Opacity  float64 `json:"opacity"`
	Rotation float64 `json:"rotation"`
}

// ShapeKind enumerates the supported primitive shapes.
type ShapeKind string

const (
	ShapeRect     ShapeKind = "rect"
	ShapeCircle   ShapeKind = "circle"
	ShapeLine     ShapeKind = "line"
	ShapeTriangle ShapeKind = "triangle"
	ShapeStar     ShapeKind = "star"
)

// ShapeElement is a primitive shape on the canvas.
type ShapeElement struct {
	ID           string    `json:"id"`
	Kind         ShapeKind `json:"type"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	Fill         string    `json:"fill"`
	Stroke       string    `json:"stroke"`
	StrokeWidth  float64   `json:"strokeWidth"`
	Opacity      float64   `json:"opacity"`
	Rotation     float64   `json:"rotation"`
	CornerRadius float64   `json:"cornerRadius,omitempty"`
	Points       int       `json:"points,omitempty"`
}

// DrawingPath is a freehand stroke. Paths carry no element ID and therefore
// never appear in the layer order.
type DrawingPath struct {
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
}

// CanvasSize is the drawing surface dimensions in pixels.
type CanvasSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Slide is a single canvas page within a deck.
type Slide struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	CanvasW       float64        `json:"canvasW"`
	CanvasH       float64        `json:"canvasH"`
	BgColor       string         `json:"bgColor"`
	Icons         []CanvasIcon   `json:"icons"`
	TextElements  []TextElement  `json:"textElements"`
	ImageElements []ImageElement `json:"imageElements"`
	Shapes        []ShapeElement `json:"shapes"`
	DrawingPaths  []DrawingPath  `json:"drawingPaths"`
	LayerOrder    []string       `json:"layerOrder"`
}

// NewBlankSlide returns an empty 800x600 white slide with the provided
// identifier and name.
func NewBlankSlide(id, name string) Slide {
	if name == "" {
		name = "Untitled"
	}
	return Slide{
		ID:            id,
		Name:          name,
		CanvasW:       800,
		CanvasH:       600,
		BgColor:       "#ffffff",
		Icons:         []CanvasIcon{},
		TextElements:  []TextElement{},
		ImageElements: []ImageElement{},
		Shapes:        []ShapeElement{},
		DrawingPaths:  []DrawingPath{},
		LayerOrder:    []string{},
	}
}

// CanvasState is the full materialized snapshot of the shared drawing
// surface. Broadcasts carry CanvasPatch values; this struct is what the
// store persists and what patches are applied to.
type CanvasState struct {
	Icons             []CanvasIcon   `json:"icons"`
	TextElements      []TextElement  `json:"textElements"`
	ImageElements     []ImageElement `json:"imageElements"`
	Shapes            []ShapeElement `json:"shapes"`
	Drawings          []DrawingPath  `json:"drawings"`
	CanvasSize        CanvasSize     `json:"canvasSize"`
	BackgroundColor   string         `json:"backgroundColor"`
	LayerOrder        []string       `json:"layerOrder"`
	Slides            []Slide        `json:"slides"`
	CurrentSlideIndex int            `json:"currentSlideIndex"`
}

// PruneLayerOrder drops stale or duplicate entries from LayerOrder and
// appends any live element ID that is missing, so that every live element
// appears exactly once.
func (s *CanvasState) PruneLayerOrder() {
	live := make(map[string]bool)
	for _, icon := range s.Icons {
		live[icon.ID] = true
	}
	for _, text := range s.TextElements {
		live[text.ID] = true
	}
	for _, image := range s.ImageElements {
		live[image.ID] = true
	}
	for _, shape := range s.Shapes {
		live[shape.ID] = true
	}

	pruned := make([]string, 0, len(live))
	seen := make(map[string]bool, len(live))
	for _, id := range s.LayerOrder {
		if !live[id] || seen[id] {
			continue
		}
		seen[id] = true
		pruned = append(pruned, id)
	}
	for _, icon := range s.Icons {
		if !seen[icon.ID] {
			seen[icon.ID] = true
			pruned = append(pruned, icon.ID)
		}
	}
	for _, text := range s.TextElements {
		if !seen[text.ID] {
			seen[text.ID] = true
			pruned = append(pruned, text.ID)
		}
	}
	for _, image := range s.ImageElements {
		if !seen[image.ID] {
			seen[image.ID] = true
			pruned = append(pruned, image.ID)
		}
	}
	for _, shape := range s.Shapes {
		if !seen[shape.ID] {
			seen[shape.ID] = true
			pruned = append(pruned, shape.ID)
		}
	}
	s.LayerOrder = pruned
}

// AsPatch exposes the full snapshot as a patch with every field present.
func (s *CanvasState) AsPatch() CanvasPatch {
	state := *s
	return CanvasPatch{
		Icons:             &state.Icons,
		TextElements:      &state.TextElements,
		ImageElements:     &state.ImageElements,
		Shapes:            &state.Shapes,
		Drawings:          &state.Drawings,
		CanvasSize:        &state.CanvasSize,
		BackgroundColor:   &state.BackgroundColor,
		LayerOrder:        &state.LayerOrder,
		Slides:            &state.Slides,
		CurrentSlideIndex: &state.CurrentSlideIndex,
	}
}

// CanvasPatch carries the complete current values of whichever snapshot
// fields changed. A nil field means "leave untouched"; a present field
// replaces the receiver's value wholesale (last write observed wins, no
// per-element merge).
type CanvasPatch struct {
	Icons             *[]CanvasIcon   `json:"icons,omitempty"`
	TextElements      *[]TextElement  `json:"textElements,omitempty"`
	ImageElements     *[]ImageElement `json:"imageElements,omitempty"`
	Shapes            *[]ShapeElement `json:"shapes,omitempty"`
	Drawings          *[]DrawingPath  `json:"drawings,omitempty"`
	CanvasSize        *CanvasSize     `json:"canvasSize,omitempty"`
	BackgroundColor   *string         `json:"backgroundColor,omitempty"`
	LayerOrder        *[]string       `json:"layerOrder,omitempty"`
	Slides            *[]Slide        `json:"slides,omitempty"`
	CurrentSlideIndex *int            `json:"currentSlideIndex,omitempty"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p CanvasPatch) IsEmpty() bool {
	return p.Icons == nil &&
		p.TextElements == nil &&
		p.ImageElements == nil &&
		p.Shapes == nil &&
		p.Drawings == nil &&
		p.CanvasSize == nil &&
		p.BackgroundColor == nil &&
		p.LayerOrder == nil &&
		p.Slides == nil &&
		p.CurrentSlideIndex == nil
}

// Apply merges the patch into the snapshot. Only fields present on the
// patch are replaced.
func (p CanvasPatch) Apply(state *CanvasState) {
	if p.Icons != nil {
		state.Icons = *p.Icons
	}
	if p.TextElements != nil {
		state.TextElements = *p.TextElements
	}
	if p.ImageElements != nil {
		state.ImageElements = *p.ImageElements
	}
	if p.Shapes != nil {
		state.Shapes = *p.Shapes
	}
	if p.Drawings != nil {
		state.Drawings = *p.Drawings
	}
	if p.CanvasSize != nil {
		state.CanvasSize = *p.CanvasSize
	}
	if p.BackgroundColor != nil {
		state.BackgroundColor = *p.BackgroundColor
	}
	if p.LayerOrder != nil {
		state.LayerOrder = *p.LayerOrder
	}
	if p.Slides != nil {
		state.Slides = *p.Slides
	}
	if p.CurrentSlideIndex != nil {
		state.CurrentSlideIndex = *p.CurrentSlideIndex
	}
}
