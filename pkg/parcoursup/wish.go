package parcoursup

import (
	"fmt"
	"time"

	"parcoursup-client/pkg/htmlutil"
)

// Wish is one of Proposition, PendingWish or RefusedWish, use a type switch to
// tell them apart.
type Wish interface {
	fmt.Stringer
	Info() WishInfo
	isWish()
}

// WishInfo holds the fields every kind of wish has.
type WishInfo struct {
	Id               string
	Name             string
	IsApprenticeship bool
	Institution      map[string]any
	AdditionalInfo   string
}

func (w WishInfo) Info() WishInfo {
	return w
}

// InstitutionName is the `nom` of the institution, or an empty string if it has none.
func (w WishInfo) InstitutionName() string {
	name, ok := w.Institution["nom"].(string)
	if !ok {
		return ""
	}
	return htmlutil.NormalizeText(name)
}

func (w WishInfo) describe(kind string) string {
	return fmt.Sprintf("<%s %s %s>", kind, w.InstitutionName(), w.Name)
}

// Proposition is an admission offer. A nil ReplyDeadline means the offer was
// accepted for good, otherwise the candidate still has to reply before it.
type Proposition struct {
	WishInfo
	ReplyDeadline *time.Time
	Accepted      bool
}

func (Proposition) isWish() {}

func (p Proposition) String() string {
	return p.describe("Proposition")
}

// PendingWish is a wish on a waiting list. The ranking fields are either all set,
// only Rank and Seats are set, or none are.
type PendingWish struct {
	WishInfo
	WaitlistPosition             *int
	WaitlistLength               *int
	Seats                        *int
	Rank                         *int
	LastAdmittedRank             *int
	LastAdmittedRankPreviousYear *int
}

func (PendingWish) isWish() {}

func (p PendingWish) String() string {
	return p.describe("PendingWish")
}

// RefusedWish is a rejected wish along with the reason given by the portal.
type RefusedWish struct {
	WishInfo
	Reason string
}

func (RefusedWish) isWish() {}

func (r RefusedWish) String() string {
	return r.describe("RefusedWish")
}
