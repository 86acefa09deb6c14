package tesseract

import (
	"math"
	"testing"
)

func TestParseTSV(t *testing.T) {
	out := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t96\tHello\n" +
		"5\t1\t1\t1\t1\t2\t70\t10\t60\t20\t88\tworld\n" +
		"5\t1\t1\t1\t1\t3\t140\t10\t20\t20\t-1\t\n"

	res := parseTSV(out)
	if res.Text != "Hello world" {
		t.Fatalf("text = %q, want %q", res.Text, "Hello world")
	}
	if math.Abs(res.Confidence-0.92) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.92", res.Confidence)
	}
}

func TestParseTSV_NoWords(t *testing.T) {
	res := parseTSV("level\tpage_num\n1\t1\n")
	if res.Text != "" || res.Confidence != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
