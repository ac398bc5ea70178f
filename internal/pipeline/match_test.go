package pipeline

import (
	"testing"

	"pgregory.net/rapid"

	"worksync/internal"
	"worksync/internal/config"
)

func addressRow(index int, composite string) internal.Row {
	row := internal.NewRow(index)
	row.Set(internal.ColAddress, composite)
	return row
}

func TestMatchDisambiguatesNumbers(t *testing.T) {
	m := NewMatcher(config.MustCompileDefaults())
	rows := []internal.Row{
		addressRow(2, "ул. Ленина 1. Задание 21"),
		addressRow(3, "ул. Мира 21. Задание 1"),
	}

	if pos, ok := m.Match("1", rows); !ok || pos != 1 {
		t.Fatalf("task 1 pos=%d ok=%v", pos, ok)
	}
	if pos, ok := m.Match("21", rows); !ok || pos != 0 {
		t.Fatalf("task 21 pos=%d ok=%v", pos, ok)
	}
	if _, ok := m.Match("2", rows); ok {
		t.Fatalf("task 2 must not match")
	}
	if _, ok := m.Match("", rows); ok {
		t.Fatalf("empty task must not match")
	}
}

func TestMatchLegacyRowsByDelimitedNumber(t *testing.T) {
	m := NewMatcher(config.MustCompileDefaults())
	rows := []internal.Row{addressRow(2, "Невский 88, заявка 4521")}

	if _, ok := m.Match("4521", rows); !ok {
		t.Fatalf("expected match")
	}
	if _, ok := m.Match("452", rows); ok {
		t.Fatalf("partial number must not match")
	}
}

func TestMatchSubstringMode(t *testing.T) {
	rules := config.DefaultRules()
	rules.MatchMode = config.MatchSubstring
	compiled, err := rules.Compile()
	if err != nil {
		t.Fatal(err)
	}
	m := NewMatcher(compiled)
	rows := []internal.Row{
		addressRow(2, "ул. Ленина 1. Задание 21"),
		addressRow(3, "ул. Мира 21. Задание 1"),
	}
	if pos, ok := m.Match("1", rows); !ok || pos != 0 {
		t.Fatalf("substring mode takes the first containing row, pos=%d", pos)
	}
}

func TestMatchFirstRowWins(t *testing.T) {
	m := NewMatcher(config.MustCompileDefaults())
	rows := []internal.Row{
		addressRow(5, "А. Задание 7"),
		addressRow(9, "Б. Задание 7"),
	}
	if pos, ok := m.Match("7", rows); !ok || pos != 0 {
		t.Fatalf("pos=%d ok=%v", pos, ok)
	}
}

func TestMatchNeverConfusesDistinctTasksProperty(t *testing.T) {
	rules := config.MustCompileDefaults()
	m := NewMatcher(rules)
	merger := NewMerger(rules, "расценки", nil)

	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.IntRange(1, 99999).Draw(rt, "a")
		b := rapid.IntRange(1, 99999).Filter(func(v int) bool { return v != a }).Draw(rt, "b")
		house := rapid.IntRange(1, 300).Draw(rt, "house")

		composite := merger.Composite(internal.StructuredRecord{MainAddress: "ул. Садовая " + itoa(house), TaskNumber: itoa(a)})
		rows := []internal.Row{addressRow(2, composite)}

		if _, ok := m.Match(itoa(b), rows); ok {
			rt.Fatalf("task %d matched row of task %d (%q)", b, a, composite)
		}
		if _, ok := m.Match(itoa(a), rows); !ok {
			rt.Fatalf("task %d did not match its own row %q", a, composite)
		}
	})
}
