package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	urlPattern   = regexp.MustCompile(`http\S+|www\.\S+`)
	nonWordChars = regexp.MustCompile(`[^가-힣A-Za-z0-9\s]`)
	particle     = regexp.MustCompile(`(은|는|이|가|을|를|에|에서|으로|로|와|과|도|만|까지|부터|의|께서|한테|에게)$`)
	politeEnding = regexp.MustCompile(`(습니다|세요|어요|아요|해요|지요|네요|예요|이에요)$`)
	digitsOnly   = regexp.MustCompile(`^\d+$`)
)

var baseStopwords = strings.Fields(`
은 는 이 가 을 를 에 에서 으로 로 와 과 도 만 까지 부터 의 에게 께서 한테
하고 하다 있다 없다 되다 이다 아니다 같다 다르다 크다 작다 좋다 나쁘다
그리고 그러나 그래서 그런데 하지만 또한 또는 그냥 좀 아주 진짜 정말 매우 너무
요즘 오늘 어제 내일 이번 지난 다음 또 다시 계속 항상 가끔 때때로 자주
것 수 때 곳 점 개 명 원 시간 분 일 월 년 번째 정도 약`)

// emphasis and negation words stay in the keyword tokens
var keptSignals = strings.Fields(`
너무 정말 진짜 완전 매우 아주 엄청 진심 최고로 극도로 극 되게 엄청나 완전히 정말로
안 못 않 아니 아니다 전혀 절대 별로 그닥 덜 없다 않다 아니야 아닌 아니었 아니에요 아니네요 아닙니다`)

// Stopwords is the keyword stop list
var Stopwords = buildStopwords()

func buildStopwords() map[string]struct{} {
	stop := make(map[string]struct{}, len(baseStopwords))
	for _, w := range baseStopwords {
		stop[w] = struct{}{}
	}
	for _, w := range keptSignals {
		delete(stop, w)
	}
	return stop
}

// Tokenize strips URLs and symbols and splits on whitespace
func Tokenize(text string) []string {
	text = urlPattern.ReplaceAllString(text, " ")
	text = nonWordChars.ReplaceAllString(text, " ")
	return strings.Fields(text)
}

// KeywordTokens trims particles and polite endings and drops stopwords,
// single runes and bare numbers.
func KeywordTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, w := range tokens {
		w = particle.ReplaceAllString(w, "")
		w = politeEnding.ReplaceAllString(w, "")
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, stop := Stopwords[w]; stop {
			continue
		}
		if digitsOnly.MatchString(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// SentimentTokens only trims particles, every word is kept
func SentimentTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, w := range tokens {
		if w = particle.ReplaceAllString(w, ""); w != "" {
			out = append(out, w)
		}
	}
	return out
}
