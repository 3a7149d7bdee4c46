package peoplecount

// Predicate reports whether a candidate person detection is acceptable
type Predicate func(d PersonDetection) bool

// ClassPredicate accepts detections of the given class only
func ClassPredicate(class int) Predicate {
	return func(d PersonDetection) bool {
		return d.Class == class
	}
}

// ConfidencePredicate accepts detections scoring at least minConf
func ConfidencePredicate(minConf float32) Predicate {
	return func(d PersonDetection) bool {
		return d.Confidence >= minConf
	}
}

// HeightPredicate accepts detections with a box height within [min, max]
// pixels inclusive
func HeightPredicate(min, max int) Predicate {
	return func(d PersonDetection) bool {
		return d.Height >= min && d.Height <= max
	}
}

// AspectPredicate rejects boxes wider than maxAspect*height or narrower than
// minAspect*height
func AspectPredicate(minAspect, maxAspect float64) Predicate {
	return func(d PersonDetection) bool {
		w := float64(d.Width)
		h := float64(d.Height)
		return w <= h*maxAspect && w >= h*minAspect
	}
}

// DetectionFilter turns the raw detections of one frame into the set of
// plausible people
type DetectionFilter struct {
	predicates []Predicate
}

// NewDetectionFilter returns a filter applying the class, confidence, height
// and aspect ratio predicates configured in p
func NewDetectionFilter(p Params) *DetectionFilter {
	return NewCustomFilter(
		ClassPredicate(p.PersonClass),
		ConfidencePredicate(p.MinConfidence),
		HeightPredicate(p.MinHeight, p.MaxHeight),
		AspectPredicate(p.MinAspect, p.MaxAspect),
	)
}

// NewCustomFilter returns a filter requiring every given predicate to pass
func NewCustomFilter(predicates ...Predicate) *DetectionFilter {
	return &DetectionFilter{predicates: predicates}
}

// Filter returns the detections passing all predicates.  The frame
// dimensions are accepted for predicates relative to frame size, the
// built in ones work in absolute pixels.  Overlapping boxes are not merged.
func (f *DetectionFilter) Filter(raw []RawDetection, frameHeight, frameWidth int) []PersonDetection {

	out := make([]PersonDetection, 0, len(raw))

next:
	for _, r := range raw {
		d := PersonDetection{
			RawDetection: r,
			Height:       r.Box.Height(),
			Width:        r.Box.Width(),
		}

		for _, pred := range f.predicates {
			if !pred(d) {
				continue next
			}
		}

		out = append(out, d)
	}

	return out
}
