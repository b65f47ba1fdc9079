package services

import (
	"math"
	"testing"
)

func TestParseScoreBatch(t *testing.T) {
	good := "房屋质量:6.5, 居住体验:7, 房屋内配套:5, 总评分:12.3\n" +
		"房屋质量:3, 居住体验:4, 房屋内配套:2.5, 总评分:6.3\n" +
		"房屋质量:9.5, 居住体验:8.5, 房屋内配套:9, 总评分:18\n" +
		"房屋质量:2, 居住体验:2.5, 房屋内配套:3, 总评分:5.5"

	got := ParseScoreBatch(good, 4)
	want := []float64{12.3, 6.3, 18, 5.5}
	if len(got) != len(want) {
		t.Fatalf("got %d scores, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("score[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseScoreBatchWrongLineCount(t *testing.T) {
	text := "房屋质量:6.5, 居住体验:7, 房屋内配套:5, 总评分:12.3"
	got := ParseScoreBatch(text, 4)
	if len(got) != 4 {
		t.Fatalf("got %d scores, want 4", len(got))
	}
	for i, v := range got {
		if v != 0 {
			t.Errorf("score[%d] = %v, want 0 for malformed batch", i, v)
		}
	}
}

func TestParseScoreBatchOutOfRange(t *testing.T) {
	text := "总评分:25\n总评分:12\n总评分:-1\n总评分:0"
	got := ParseScoreBatch(text, 4)
	want := []float64{0, 12, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("score[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAverageScore(t *testing.T) {
	if got := AverageScore(nil); got != UnratedScore {
		t.Errorf("empty slice = %v, want %v", got, UnratedScore)
	}
	if got := AverageScore([]float64{0, 0, 0, 0}); got != UnratedScore {
		t.Errorf("all zeros = %v, want %v", got, UnratedScore)
	}

	got := AverageScore([]float64{12.3, 6.3, 18, 5.5, 11, 13.2, 9.9, 14})
	want := 11.3
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("AverageScore = %v, want %v", got, want)
	}

	// One decimal place.
	if got := AverageScore([]float64{10, 11}); got != 10.5 {
		t.Errorf("AverageScore = %v, want 10.5", got)
	}
	if got := AverageScore([]float64{10, 10, 11}); got != 10.3 {
		t.Errorf("AverageScore = %v, want 10.3", got)
	}
}
