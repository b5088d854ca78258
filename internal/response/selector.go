// Package response picks the bot's reply to an inventory photo.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/vbonduro/lootbot/internal/inventory"
)

// Rand is the source of every random choice the selector makes.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// globalRand uses the top-level math/rand/v2 functions, which are safe for
// concurrent use.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type Category string

const (
	CategoryNothing    Category = "nothing"
	CategorySnarky     Category = "snarky"
	CategoryCompliment Category = "compliment"
	CategoryTaterTots  Category = "tater_tots"
	CategoryBunny      Category = "bunny"
	CategoryError      Category = "error"
)

const (
	maxRoll     = 100
	maxTopItems = 5
)

// rollBand assigns the inclusive roll range [low, high] to a category.
type rollBand struct {
	low, high int
	category  Category
}

var rollTable = []rollBand{
	{low: 1, high: 20, category: CategorySnarky},
	{low: 21, high: 97, category: CategoryCompliment},
	{low: 98, high: 99, category: CategoryTaterTots},
	{low: 100, high: 100, category: CategoryBunny},
}

// CategoryFor maps a roll in [1, 100] to its category.
func CategoryFor(roll int) (Category, bool) {
	for _, b := range rollTable {
		if roll >= b.low && roll <= b.high {
			return b.category, true
		}
	}
	return "", false
}

var errNoCandidates = errors.New("no candidate lines")

// Reply is a composed message and how it was chosen.
type Reply struct {
	Text     string
	Category Category
	Roll     int
}

type Selector struct {
	vocab  *inventory.Vocabulary
	rng    Rand
	logger *slog.Logger
}

// NewSelector returns a Selector drawing from rng, or from math/rand/v2 when
// rng is nil.
func NewSelector(vocab *inventory.Vocabulary, rng Rand, logger *slog.Logger) *Selector {
	if rng == nil {
		rng = globalRand{}
	}
	return &Selector{vocab: vocab, rng: rng, logger: logger}
}

// Select returns the reply text for user given their item counts.
func (s *Selector) Select(user string, counts inventory.Counts) string {
	return s.Compose(user, counts).Text
}

// Compose rolls for a category and formats a message from it. It never
// fails: any problem while formatting yields the per-user error message.
func (s *Selector) Compose(user string, counts inventory.Counts) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("response formatting panicked", "user", user, "panic", r)
			reply = Reply{Text: ErrorMessage(user), Category: CategoryError}
		}
	}()

	if len(counts) == 0 {
		return Reply{Text: NothingFoundMessage(user), Category: CategoryNothing}
	}

	sorted := counts.Sorted()
	k := s.rng.IntN(min(maxTopItems, len(sorted))) + 1
	top := make([]string, k)
	for i := range top {
		top[i] = sorted[i].Name
	}

	roll := s.rng.IntN(maxRoll) + 1
	s.logger.Debug("rolled for response", "user", user, "roll", roll, "top_items", top)

	reply, err := s.forRoll(user, counts, sorted, top, roll)
	if err != nil {
		s.logger.Error("failed to compose response", "user", user, "roll", roll, "error", err)
		return Reply{Text: ErrorMessage(user), Category: CategoryError, Roll: roll}
	}
	return reply
}

func (s *Selector) forRoll(user string, counts inventory.Counts, sorted []inventory.ItemCount, top []string, roll int) (Reply, error) {
	category, ok := CategoryFor(roll)
	if !ok {
		return Reply{}, fmt.Errorf("roll %d is outside the roll table", roll)
	}

	reply := Reply{Category: category, Roll: roll}
	switch category {
	case CategorySnarky:
		var least string
		if len(sorted) > 0 {
			least = sorted[len(sorted)-1].Name
		}
		lines := SnarkyCandidates(user, s.missingItems(counts), least, s.rng)
		if len(lines) == 0 {
			reply.Text = stepItUpMessage(user)
			return reply, nil
		}
		text, err := s.pick(lines)
		if err != nil {
			return Reply{}, err
		}
		reply.Text = text
	case CategoryCompliment:
		text, err := s.pick(ComplimentCandidates(user, top))
		if err != nil {
			return Reply{}, err
		}
		reply.Text = text
	case CategoryTaterTots:
		reply.Text = TaterTotsMessage
	case CategoryBunny:
		reply.Text = BunnyMessage
	}
	return reply, nil
}

// missingItems lists vocabulary items with no detections, sorted.
func (s *Selector) missingItems(counts inventory.Counts) []string {
	var missing []string
	for _, item := range s.vocab.Items() {
		if _, ok := counts[item]; !ok {
			missing = append(missing, item)
		}
	}
	return missing
}

func (s *Selector) pick(lines []string) (string, error) {
	if len(lines) == 0 {
		return "", errNoCandidates
	}
	return lines[s.rng.IntN(len(lines))], nil
}
