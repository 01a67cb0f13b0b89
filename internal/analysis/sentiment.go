package analysis

import (
	"bufio"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"sjsage522/placereviewworker/pkg/errors"
)

const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

var positiveStems = strings.Fields(`
좋 맛있 최고 훌륭 완벽 추천 만족 깨끗 친절 신선 맛나 맛좋 맛집 끝내주 굿 좋아 사랑 행복 즐거 가성비
고소 담백 깔끔 부드럽 쫄깃 바삭 달콤 향긋 빨리 냄새안 환상 예술 일품 감동 놀랍 대박 인생
풍부 진하 알맞 든든 포만 정성 센스 푸짐 넉넉 양많 신속 빠르 정갈 위생 세심
고급 프리미엄 특별 독특 유니크 차별 새롭 착한가격 혜자
최애 재방문 적당 합리 저렴 괜찮 나쁘지않 쾌적 안질기 짜지도안 적합 강추 최곱`)

var negativeStems = strings.Fields(`
맛없 별로 실망 짜 싱거 늦 불친절 더럽 비싸 아쉽 후회 최악 화나 밍밍 퍽퍽 질기
느리 시끄럽 불편 차가 식 탔 혼잡 냄새나 루즈 불결 과하 심하 낡 허름
그냥그래 평범 무난 그저그 쏘쏘 애매 작 적 부족 모자라 아깝 지저분 위생안 오래됐
무성의 불만 짜증 황당 어이없 기대이하 허술 엉망 개판 조잡 글쎄`)

// words containing any of these carry no sentiment of their own
var neutralStems = strings.Fields(`
식사 식구 회식 후식 외식 음식 폭식 짜장 메뉴 가게 식당 식 음
요리 반찬 밥 국 찌개 전 구이 볶음 주차가능 주차 포장 배달 예약 대기
작 적 크 많 양 생각 느낌 경우 정도 편 시간 장소 공짜 진짜`)

var negators = []string{"안", "못", "없", "아니", "전혀", "결코", "비"}

var intensifierWeights = map[string]float64{
	"너무": 1.5, "정말": 1.5, "진짜": 1.5, "완전": 1.5,
	"매우": 1.3, "아주": 1.3, "엄청": 1.5, "진심": 1.5,
	"최고로": 2.0, "극도로": 2.0, "극": 1.8, "되게": 1.3,
	"엄청나": 1.5, "완전히": 1.5, "정말로": 1.5,
}

// Polarity is a dictionary entry's positive and negative strength
type Polarity struct {
	Pos float64
	Neg float64
}

// Lexicon scores token sequences with an optional dictionary and stem lists
type Lexicon struct {
	Dictionary   map[string]Polarity
	Positive     []string
	Negative     []string
	Neutral      []string
	Negators     map[string]struct{}
	Intensifiers map[string]float64
	// Threshold is the score distance from zero that makes a label non-neutral
	Threshold float64
}

func NewLexicon(dict map[string]Polarity) *Lexicon {
	neg := make(map[string]struct{}, len(negators))
	for _, w := range negators {
		neg[w] = struct{}{}
	}
	return &Lexicon{
		Dictionary:   dict,
		Positive:     positiveStems,
		Negative:     negativeStems,
		Neutral:      neutralStems,
		Negators:     neg,
		Intensifiers: intensifierWeights,
		Threshold:    0.5,
	}
}

// LoadDictionary reads "word<TAB>pos<TAB>neg" lines. Malformed lines are skipped.
func LoadDictionary(path string) (map[string]Polarity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewConfiguration("open sentiment dictionary", err)
	}
	defer f.Close()

	dict := map[string]Polarity{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.Split(strings.TrimSpace(sc.Text()), "\t")
		if len(parts) != 3 {
			continue
		}
		pos, perr := strconv.ParseFloat(parts[1], 64)
		neg, nerr := strconv.ParseFloat(parts[2], 64)
		if perr != nil || nerr != nil {
			continue
		}
		dict[parts[0]] = Polarity{Pos: pos, Neg: neg}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewConfiguration("read sentiment dictionary", err)
	}
	return dict, nil
}

// Sentiment is the scored polarity of one review
type Sentiment struct {
	Label      string
	Pos        float64
	Neg        float64
	MatchedPos []string
	MatchedNeg []string
}

func (s Sentiment) Score() float64 {
	return s.Pos - s.Neg
}

func containsAny(token string, stems []string) bool {
	for _, s := range stems {
		if strings.Contains(token, s) {
			return true
		}
	}
	return false
}

// Score walks tokens once. The token before a match can weight it (intensifier)
// or flip it (negator); dictionary entries win over the stem lists.
func (l *Lexicon) Score(tokens []string) Sentiment {
	var s Sentiment
	for i, tok := range tokens {
		if containsAny(tok, l.Neutral) {
			continue
		}

		weight, negated := 1.0, false
		prev := ""
		if i > 0 {
			prev = tokens[i-1]
			if w, ok := l.Intensifiers[prev]; ok {
				weight = w
			}
			_, negated = l.Negators[prev]
		}

		if p, ok := l.Dictionary[tok]; ok {
			pos, neg := p.Pos, p.Neg
			if negated {
				pos, neg = neg, pos
			}
			switch {
			case pos > neg:
				s.Pos += pos * weight
				s.MatchedPos = append(s.MatchedPos, tok)
			case neg > pos:
				s.Neg += neg * weight
				s.MatchedNeg = append(s.MatchedNeg, tok)
			}
			continue
		}

		switch {
		case containsAny(tok, l.Positive):
			if negated {
				s.Neg += weight
				s.MatchedNeg = append(s.MatchedNeg, prev+" "+tok)
			} else {
				s.Pos += weight
				s.MatchedPos = append(s.MatchedPos, tok)
			}
		case containsAny(tok, l.Negative):
			if negated {
				s.Pos += weight
				s.MatchedPos = append(s.MatchedPos, prev+" "+tok)
			} else {
				s.Neg += weight
				s.MatchedNeg = append(s.MatchedNeg, tok)
			}
		}
	}

	switch score := s.Score(); {
	case score > l.Threshold:
		s.Label = Positive
	case score < -l.Threshold:
		s.Label = Negative
	default:
		s.Label = Neutral
	}
	return s
}

// PlaceSentiment aggregates the review sentiments of one place
type PlaceSentiment struct {
	Place        string
	Mean         float64
	Std          float64 // NaN with a single review
	Count        int
	TotalPos     float64
	TotalNeg     float64
	PositiveWord []string
	NegativeWord []string
}

// ScoredReview pairs a review with its sentiment
type ScoredReview struct {
	Review
	Sentiment
}

// Aggregate groups scored reviews by place, ordered by place name
func Aggregate(scored []ScoredReview) []PlaceSentiment {
	groups := map[string][]ScoredReview{}
	for _, s := range scored {
		groups[s.Place] = append(groups[s.Place], s)
	}
	places := make([]string, 0, len(groups))
	for p := range groups {
		places = append(places, p)
	}
	sort.Strings(places)

	out := make([]PlaceSentiment, 0, len(places))
	for _, p := range places {
		g := groups[p]
		ps := PlaceSentiment{Place: p, Count: len(g)}

		var sum float64
		for _, s := range g {
			score := round(s.Score(), 2)
			sum += score
			ps.TotalPos += round(s.Pos, 2)
			ps.TotalNeg += round(s.Neg, 2)
			ps.PositiveWord = append(ps.PositiveWord, s.MatchedPos...)
			ps.NegativeWord = append(ps.NegativeWord, s.MatchedNeg...)
		}
		ps.Mean = sum / float64(len(g))

		ps.Std = math.NaN()
		if len(g) > 1 {
			var sq float64
			for _, s := range g {
				d := round(s.Score(), 2) - ps.Mean
				sq += d * d
			}
			ps.Std = math.Sqrt(sq / float64(len(g)-1))
		}
		out = append(out, ps)
	}
	return out
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
