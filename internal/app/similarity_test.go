// internal/app/similarity_test.go
package app

import "testing"

func TestTextSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{name: "identical", a: "Complete exercises 1-10", b: "Complete exercises 1-10", min: 1, max: 1},
		{name: "case and spacing ignored", a: "Complete  Exercises 1-10", b: "complete exercises 1-10", min: 1, max: 1},
		{name: "minor OCR noise stays similar", a: "Complete exercises 1-10 page 42", b: "Complete exercises 1-1O page 42", min: 0.85, max: 0.99},
		{name: "different texts score low", a: "Mathematics homework chapter 5", b: "Bring art supplies tomorrow", min: 0, max: 0.5},
		{name: "both empty", a: "", b: "", min: 1, max: 1},
		{name: "one empty", a: "something", b: "", min: 0, max: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := textSimilarity(tc.a, tc.b)
			if got < tc.min || got > tc.max {
				t.Fatalf("textSimilarity(%q, %q) = %.3f, want in [%.2f, %.2f]", tc.a, tc.b, got, tc.min, tc.max)
			}
		})
	}
}

func TestTextSimilaritySymmetric(t *testing.T) {
	a, b := "Science experiment report due Friday", "Science experiment report due friday!"
	if textSimilarity(a, b) != textSimilarity(b, a) {
		t.Fatal("similarity must be symmetric")
	}
}

func TestCombineConfidence(t *testing.T) {
	cases := []struct {
		a, b, want float64
	}{
		{0.5, 0.5, 0.75},
		{0.3, 0.3, 0.51},
		{0.9, 0.8, 0.98},
		{0, 0.6, 0.6},
		{1, 0.2, 1},
	}
	for _, tc := range cases {
		got := combineConfidence(tc.a, tc.b)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("combineConfidence(%.2f, %.2f) = %.4f, want %.4f", tc.a, tc.b, got, tc.want)
		}
	}
}
