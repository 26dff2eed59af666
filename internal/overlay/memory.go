package overlay

// MemorySurface keeps elements in memory. Headless front ends and tests read them back.
type MemorySurface struct {
	elements []Annotation
	clears   int
}

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

func (s *MemorySurface) Clear() {
	s.elements = nil
	s.clears++
}

func (s *MemorySurface) Add(a Annotation) {
	s.elements = append(s.elements, a)
}

func (s *MemorySurface) Len() int {
	return len(s.elements)
}

// Elements returns the current elements.
func (s *MemorySurface) Elements() []Annotation {
	return append([]Annotation(nil), s.elements...)
}

// Clears is how many passes have cleared the surface.
func (s *MemorySurface) Clears() int {
	return s.clears
}
