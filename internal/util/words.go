package util

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	unitWords = []string{
		"", "один", "два", "три", "четыре", "пять", "шесть", "семь", "восемь", "девять",
		"десять", "одиннадцать", "двенадцать", "тринадцать", "четырнадцать", "пятнадцать",
		"шестнадцать", "семнадцать", "восемнадцать", "девятнадцать",
	}
	tensWords = []string{
		"", "", "двадцать", "тридцать", "сорок", "пятьдесят", "шестьдесят",
		"семьдесят", "восемьдесят", "девяносто",
	}
	hundredsWords = []string{
		"", "сто", "двести", "триста", "четыреста", "пятьсот", "шестьсот",
		"семьсот", "восемьсот", "девятьсот",
	}
)

type scale struct {
	value    int64
	forms    [3]string
	feminine bool
}

var scales = []scale{
	{value: 1_000_000_000, forms: [3]string{"миллиард", "миллиарда", "миллиардов"}},
	{value: 1_000_000, forms: [3]string{"миллион", "миллиона", "миллионов"}},
	{value: 1_000, forms: [3]string{"тысяча", "тысячи", "тысяч"}, feminine: true},
}

// AmountToWords renders an amount the way completion certificates spell it:
// "14100 (Четырнадцать тысяч сто) рублей, 00 копеек".
func AmountToWords(amount float64) string {
	cents := int64(math.Round(amount * 100))
	rub := cents / 100
	kop := cents % 100

	text := IntegerToWords(rub)
	return fmt.Sprintf("%d (%s) рублей, %02d копеек", rub, capitalize(text), kop)
}

// IntegerToWords spells a non-negative integer in Russian, masculine gender.
func IntegerToWords(n int64) string {
	if n <= 0 {
		return "ноль"
	}
	parts := make([]string, 0, 4)
	for _, s := range scales {
		if n < s.value {
			continue
		}
		group := n / s.value
		n %= s.value
		parts = append(parts, chunkWords(group, s.feminine), s.forms[pluralForm(group)])
	}
	if n > 0 {
		parts = append(parts, chunkWords(n, false))
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func chunkWords(n int64, feminine bool) string {
	words := make([]string, 0, 3)
	if h := n / 100; h > 0 {
		words = append(words, hundredsWords[h])
	}
	rest := n % 100
	if rest >= 20 {
		words = append(words, tensWords[rest/10])
		rest %= 10
	}
	if rest > 0 {
		w := unitWords[rest]
		if feminine && rest == 1 {
			w = "одна"
		} else if feminine && rest == 2 {
			w = "две"
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

// pluralForm picks the noun form index: 0 for 1, 21...; 1 for 2-4, 22-24...; 2 otherwise.
func pluralForm(n int64) int {
	mod100 := n % 100
	mod10 := n % 10
	switch {
	case mod100 >= 11 && mod100 <= 14:
		return 2
	case mod10 == 1:
		return 0
	case mod10 >= 2 && mod10 <= 4:
		return 1
	default:
		return 2
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return cases.Upper(language.Russian).String(string(r)) + s[size:]
}

var rubPrinter = message.NewPrinter(language.Russian)

// FormatMoney renders an amount with Russian digit grouping and two decimals.
func FormatMoney(amount float64) string {
	return rubPrinter.Sprint(number.Decimal(amount, number.Scale(2)))
}
