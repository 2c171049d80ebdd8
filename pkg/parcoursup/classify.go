package parcoursup

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"parcoursup-client/internal/components/chrono"
	"parcoursup-client/internal/components/telemetry"
	"parcoursup-client/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	situationProposition = 1
	situationPending     = 0
	situationRefused     = -1
)

// Identifier decodes ids the api sends either as JSON strings or numbers.
type Identifier string

func (i *Identifier) UnmarshalJSON(data []byte) error {
	*i = Identifier(scalarText(data))
	return nil
}

type RawSituation struct {
	Code  *int    `json:"code"`
	Label *string `json:"libelle"`
}

type RawInformation struct {
	Text string `json:"texte"`
}

// RawWish is a wish record as served by the mobile api.
type RawWish struct {
	Id                Identifier       `json:"voeuId"`
	Name              string           `json:"formation"`
	IsApprenticeship  bool             `json:"formationEnApprentissage"`
	Institution       map[string]any   `json:"etablissement"`
	AdditionalInfo    string           `json:"infosComplementaires"`
	Situation         RawSituation     `json:"situation"`
	ReplyDeadline     string           `json:"dateLimiteReponse"`
	OtherInformations []RawInformation `json:"autresInformations"`
}

func (r RawWish) info() WishInfo {
	return WishInfo{
		Id:               string(r.Id),
		Name:             r.Name,
		IsApprenticeship: r.IsApprenticeship,
		Institution:      r.Institution,
		AdditionalInfo:   r.AdditionalInfo,
	}
}

// Classifier turns raw wish records into Proposition, PendingWish or RefusedWish.
type Classifier struct {
	time chrono.TimeAPI
	tel  telemetry.API
}

// NewClassifier creates a Classifier, nil arguments fall back to the system clock
// and slog reporting.
func NewClassifier(time chrono.TimeAPI, tel telemetry.API) Classifier {
	if time == nil {
		time = chrono.NewStandardTime()
	}
	if tel == nil {
		tel = telemetry.NewScopedAPI("parcoursup", telemetry.SlogAPI{})
	}
	return Classifier{time: time, tel: tel}
}

func (c Classifier) fail(err *ClassificationError) error {
	c.tel.ReportBroken(report_classifier_classify, err)
	return err
}

// ClassifyJSON decodes a single raw wish record and classifies it.
func (c Classifier) ClassifyJSON(data []byte) (Wish, error) {
	var raw RawWish
	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, c.fail(&ClassificationError{Msg: "decode wish", Err: err})
	}
	return c.Classify(raw)
}

// Classify selects the kind of wish from the situation code of the record.
// Unknown codes are an error, a record is never silently dropped.
func (c Classifier) Classify(raw RawWish) (Wish, error) {
	if raw.Situation.Code == nil {
		return nil, c.fail(&ClassificationError{
			WishId: string(raw.Id),
			Msg:    "missing situation code",
		})
	}

	switch *raw.Situation.Code {
	case situationProposition:
		return c.proposition(raw)
	case situationPending:
		return c.pending(raw)
	case situationRefused:
		return c.refused(raw)
	}

	return nil, c.fail(&ClassificationError{
		WishId: string(raw.Id),
		Code:   raw.Situation.Code,
		Msg:    "unrecognized situation code",
	})
}

func (c Classifier) proposition(raw RawWish) (Wish, error) {
	if raw.ReplyDeadline == "" {
		return Proposition{WishInfo: raw.info(), Accepted: true}, nil
	}

	deadline, err := parseDeadline(raw.ReplyDeadline, c.time.Now(), c.time.Location())
	if err != nil {
		return nil, c.fail(&ClassificationError{
			WishId: string(raw.Id),
			Code:   raw.Situation.Code,
			Msg:    "parse reply deadline",
			Err:    err,
		})
	}
	return Proposition{
		WishInfo:      raw.info(),
		ReplyDeadline: &deadline,
		Accepted:      false,
	}, nil
}

func isDigits(text string) bool {
	if text == "" {
		return false
	}
	for _, c := range text {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// rankingTokens returns the numbers written in bold in the html fragment, in document order.
// A number that does not fit an int is an error, skipping it would shift every following value.
func rankingTokens(fragment string) ([]int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}

	var tokens []int
	for _, node := range doc.Find("strong").Nodes {
		text := htmlutil.GetText(node)
		if !isDigits(text) {
			continue
		}
		value, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("ranking value %q: %w", text, err)
		}
		tokens = append(tokens, value)
	}
	return tokens, nil
}

func (c Classifier) pending(raw RawWish) (Wish, error) {
	wish := PendingWish{WishInfo: raw.info()}
	if len(raw.OtherInformations) == 0 {
		return wish, nil
	}

	tokens, err := rankingTokens(raw.OtherInformations[0].Text)
	if err != nil {
		return nil, c.fail(&ClassificationError{
			WishId: string(raw.Id),
			Code:   raw.Situation.Code,
			Msg:    "parse ranking fragment",
			Err:    err,
		})
	}

	switch len(tokens) {
	case 6:
		wish.WaitlistPosition = &tokens[0]
		wish.WaitlistLength = &tokens[1]
		wish.Seats = &tokens[2]
		wish.Rank = &tokens[3]
		wish.LastAdmittedRank = &tokens[4]
		wish.LastAdmittedRankPreviousYear = &tokens[5]
	case 2:
		wish.Rank = &tokens[0]
		wish.Seats = &tokens[1]
	default:
		if len(tokens) > 0 {
			c.tel.ReportWarning(
				report_classifier_classify,
				fmt.Sprintf("unexpected number of ranking values: %d", len(tokens)),
				string(raw.Id),
			)
		}
	}

	return wish, nil
}

func (c Classifier) refused(raw RawWish) (Wish, error) {
	if raw.Situation.Label == nil {
		return nil, c.fail(&ClassificationError{
			WishId: string(raw.Id),
			Code:   raw.Situation.Code,
			Msg:    "refused wish without a reason",
		})
	}
	return RefusedWish{WishInfo: raw.info(), Reason: *raw.Situation.Label}, nil
}
