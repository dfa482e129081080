package benchmark

import (
	"fmt"
	"testing"

	"github.com/kikitori/kikitori/internal/corpus"
	"github.com/kikitori/kikitori/internal/keyword"
	"github.com/kikitori/kikitori/internal/models"
	"github.com/kikitori/kikitori/internal/search"
	"github.com/kikitori/kikitori/test/e2e"
)

// buildBenchCorpus installs n copies of the E2E utterances under distinct
// file names.
func buildBenchCorpus(b *testing.B, n int) *corpus.Corpus {
	b.Helper()
	base := e2e.BuildCorpus()
	cp := corpus.New()
	for i := 0; i < n; i++ {
		u := base.Utterances[i%len(base.Utterances)]
		file := fmt.Sprintf("bench-%04d.wav", i)
		tr, err := corpus.NewTranscript(file, e2e.WordSpans(u.Sentence))
		if err != nil {
			b.Fatal(err)
		}
		cp.Set(file, tr)
	}
	return cp
}

func BenchmarkPhraseSearch(b *testing.B) {
	engine := search.NewEngine(buildBenchCorpus(b, 1000))
	q := &models.Query{Pattern: "coral reef restoration", TimingError: e2e.CadenceTolerance}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seq, err := engine.Search(q)
		if err != nil {
			b.Fatal(err)
		}
		for range seq {
		}
	}
}

func BenchmarkPhraseSearch_WithTolerances(b *testing.B) {
	engine := search.NewEngine(buildBenchCorpus(b, 1000))
	q := &models.Query{
		Pattern:              "coral restoration shallow waters",
		TimingError:          0.5,
		MissingWordTolerance: 1,
		AllowSubsequence:     true,
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seq, err := engine.Search(q)
		if err != nil {
			b.Fatal(err)
		}
		for range seq {
		}
	}
}

func BenchmarkRegexpSearch(b *testing.B) {
	engine := search.NewEngine(buildBenchCorpus(b, 200))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.SearchRegexp(`resto\w+`, ""); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCandidateFiles(b *testing.B) {
	kwIndex, err := keyword.NewMemIndex()
	if err != nil {
		b.Fatal(err)
	}
	defer kwIndex.Close()
	base := e2e.BuildCorpus()
	for i := 0; i < 1000; i++ {
		u := base.Utterances[i%len(base.Utterances)]
		file := fmt.Sprintf("bench-%04d.wav", i)
		if err := kwIndex.IndexTranscript(file, u.Sentence); err != nil {
			b.Fatal(err)
		}
	}
	words := []string{"coral", "reef", "restoration"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := kwIndex.CandidateFiles(words); err != nil {
			b.Fatal(err)
		}
	}
}
