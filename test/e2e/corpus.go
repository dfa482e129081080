// Package e2e provides end-to-end tests with a large corpus and multiple queries.
package e2e

import (
	"fmt"
	"strings"

	"github.com/kikitori/kikitori/internal/models"
)

// Utterance is one audio file's spoken content in the E2E corpus.
type Utterance struct {
	File     string
	Sentence string
}

// PhraseCase defines a phrase query and the file(s) where it must be found.
// At least one of ExpectedFiles must appear in the search results.
type PhraseCase struct {
	Phrase        string
	ExpectedFiles []string
	Description   string
}

// Corpus holds utterances and phrase test cases for E2E tests.
type Corpus struct {
	Utterances   []Utterance
	TestCases    []PhraseCase
	TotalFiles   int
	TotalQueries int
}

// Word timing used when synthesizing spans: each word takes wordDuration
// seconds and is followed by wordGap seconds of silence.
const (
	wordDuration = 0.30
	wordGap      = 0.05
)

// CadenceTolerance is a query timing error that accepts the synthesis gap
// between consecutive words.
const CadenceTolerance = 2 * wordGap

// BuildCorpus returns a corpus of 100 utterances with varied content and
// multiple phrase test cases. Each utterance carries a unique signature
// phrase so queries can assert the correct file is returned.
func BuildCorpus() *Corpus {
	utterances := buildUtterances(100)
	cases := buildPhraseCases(utterances)
	return &Corpus{
		Utterances:   utterances,
		TestCases:    cases,
		TotalFiles:   len(utterances),
		TotalQueries: len(cases),
	}
}

func buildUtterances(n int) []Utterance {
	sentences := []string{
		"welcome everyone to the morning briefing we have a lot to cover today",
		"the weather forecast calls for heavy rain across the northern coast",
		"our quarterly revenue exceeded expectations by a wide margin this year",
		"please remember to submit your travel expenses before the end of the month",
		"the museum exhibit features ancient pottery from the southern islands",
		"scientists discovered a new species of deep sea fish near the trench",
		"the train to the city center departs every fifteen minutes from platform two",
		"chef Tanaka recommends pairing the grilled fish with a light citrus sauce",
		"the committee voted unanimously to approve the new park construction",
		"astronomers observed an unusual flare from a distant binary star system",
		"the marathon route passes through five historic neighborhoods downtown",
		"our guest speaker tonight studies coral reef restoration in shallow waters",
		"the library extended its opening hours during the examination period",
		"local farmers reported an exceptional harvest of winter vegetables",
		"the orchestra will perform the complete symphony cycle next season",
		"engineers completed the bridge inspection ahead of schedule yesterday",
		"the documentary follows a family of snow monkeys through the winter",
		"volunteers planted three thousand trees along the river embankment",
		"the bakery on the corner sells fresh sourdough bread every morning",
		"researchers published their findings on migratory bird navigation",
		"the ferry service resumed normal operations after the storm passed",
		"students presented their robotics projects at the annual science fair",
		"the mayor announced plans to renovate the central railway station",
		"hikers should carry extra water when climbing the eastern ridge trail",
		"the film festival opens with a restored classic from the silent era",
		"nurses at the clinic administered flu vaccines throughout the week",
		"the startup developed a portable water filter for remote villages",
		"archaeologists uncovered a merchant ship beneath the harbor mud",
		"the choir rehearses every Thursday evening in the old chapel hall",
		"cyclists completed the coastal route despite the strong headwind",
		"the observatory hosts a public stargazing night each new moon",
		"firefighters contained the brush fire before it reached the farms",
		"the cooking class covers traditional noodle making from scratch",
		"divers photographed a rare octopus in the kelp forest yesterday",
		"the town council debated the proposal for nearly four hours",
		"beekeepers reported healthy hives after the mild spring season",
		"the gallery features watercolor landscapes by regional artists",
		"meteorologists tracked the typhoon as it turned toward open ocean",
		"the repair crew restored power to the valley within six hours",
		"children built elaborate sandcastles during the beach festival",
		"the professor explained how glaciers carve deep alpine valleys",
		"brewers introduced a seasonal ale flavored with local plums",
		"the shelter found homes for forty dogs during the adoption drive",
		"climbers reached the summit just before the clouds rolled in",
		"the tailor finished the ceremonial robes ahead of the festival",
		"economists warned that housing prices may cool by early autumn",
		"the aquarium welcomed two rescued sea turtles last weekend",
		"pilots reported smooth conditions over the mountain passes",
		"the historian traced the old trade route through the desert",
		"gardeners pruned the cherry trees before the first frost arrived",
	}

	out := make([]Utterance, 0, n)
	for i := 0; i < n && i < len(sentences); i++ {
		out = append(out, Utterance{
			File:     fmt.Sprintf("e2e-%03d.wav", i+1),
			Sentence: sentences[i],
		})
	}
	// If we need more than len(sentences), duplicate with different files.
	for len(out) < n {
		i := len(out)
		out = append(out, Utterance{
			File:     fmt.Sprintf("e2e-%03d.wav", i+1),
			Sentence: sentences[i%len(sentences)],
		})
	}
	return out
}

func buildPhraseCases(utterances []Utterance) []PhraseCase {
	if len(utterances) == 0 {
		return nil
	}
	// Each phrase appears in exactly one of the base sentences.
	phrases := []string{
		"morning briefing", "heavy rain", "quarterly revenue", "travel expenses",
		"ancient pottery", "deep sea fish", "platform two", "grilled fish",
		"park construction", "binary star", "historic neighborhoods", "coral reef restoration",
		"examination period", "winter vegetables", "symphony cycle", "bridge inspection",
		"snow monkeys", "river embankment", "fresh sourdough bread", "migratory bird",
		"ferry service", "robotics projects", "central railway station", "eastern ridge trail",
		"silent era", "flu vaccines", "portable water filter", "merchant ship",
		"old chapel hall", "coastal route", "public stargazing", "brush fire",
		"noodle making", "rare octopus", "town council", "healthy hives",
		"watercolor landscapes", "open ocean", "repair crew", "beach festival",
		"alpine valleys", "seasonal ale", "adoption drive", "the summit",
		"ceremonial robes", "housing prices", "rescued sea turtles", "mountain passes",
		"old trade route", "cherry trees",
	}
	var cases []PhraseCase
	used := make(map[string]bool)
	for _, p := range phrases {
		for _, u := range utterances {
			if strings.Contains(u.Sentence, p) && !used[u.File] {
				cases = append(cases, PhraseCase{
					Phrase:        p,
					ExpectedFiles: []string{u.File},
					Description:   fmt.Sprintf("phrase %q should be found in %s", p, u.File),
				})
				used[u.File] = true
				break
			}
		}
	}
	return cases
}

// WordSpans synthesizes timestamped word spans for a sentence with a fixed
// speaking cadence.
func WordSpans(sentence string) []models.WordSpan {
	words := strings.Fields(sentence)
	spans := make([]models.WordSpan, len(words))
	t := 0.0
	for i, w := range words {
		spans[i] = models.WordSpan{Word: w, Start: t, End: t + wordDuration}
		t += wordDuration + wordGap
	}
	return spans
}

// Spans returns the word spans of every utterance keyed by file.
func (c *Corpus) Spans() map[string][]models.WordSpan {
	out := make(map[string][]models.WordSpan, len(c.Utterances))
	for _, u := range c.Utterances {
		out[u.File] = WordSpans(u.Sentence)
	}
	return out
}
