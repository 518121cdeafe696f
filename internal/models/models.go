package models

import "time"

type Tier string

const (
	TierFree     Tier = "FREE"
	TierPro      Tier = "PRO"
	TierUltimate Tier = "ULTIMATE"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierUltimate:
		return true
	}
	return false
}

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RolePartner  Role = "PARTNER"
)

type Account struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Avatar     string    `json:"avatar"`
	Tier       Tier      `json:"tier"`
	Credits    int       `json:"credits"`
	Role       Role      `json:"role"`
	SalonID    string    `json:"salonId,omitempty"`
	TelegramID int64     `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Angle names a camera view of a generated look.
type Angle string

const (
	AngleFront Angle = "front"
	AngleLeft  Angle = "left"
	AngleRight Angle = "right"
	AngleBack  Angle = "back"
)

// RemainingAngles are the views produced by an unlock, in display order.
var RemainingAngles = []Angle{AngleLeft, AngleRight, AngleBack}

// GeneratedImages holds one optional image reference per angle.
type GeneratedImages struct {
	Front *string `json:"front"`
	Left  *string `json:"left"`
	Right *string `json:"right"`
	Back  *string `json:"back"`
}

func (g GeneratedImages) Get(a Angle) *string {
	switch a {
	case AngleFront:
		return g.Front
	case AngleLeft:
		return g.Left
	case AngleRight:
		return g.Right
	case AngleBack:
		return g.Back
	}
	return nil
}

func (g *GeneratedImages) Set(a Angle, ref *string) {
	switch a {
	case AngleFront:
		g.Front = ref
	case AngleLeft:
		g.Left = ref
	case AngleRight:
		g.Right = ref
	case AngleBack:
		g.Back = ref
	}
}

// Missing lists the remaining angles that have no image.
func (g GeneratedImages) Missing() []Angle {
	var out []Angle
	for _, a := range RemainingAngles {
		if g.Get(a) == nil {
			out = append(out, a)
		}
	}
	return out
}

type GenerationConfig struct {
	Gender             string `json:"gender"`
	Category           string `json:"category"`
	Style              string `json:"style"`
	Color              string `json:"color"`
	CustomColor        bool   `json:"customColor,omitempty"`
	HighlightIntensity int    `json:"highlightIntensity"`
}

type HistorySession struct {
	ID             string           `json:"id"`
	Timestamp      time.Time        `json:"timestamp"`
	OriginalImage  string           `json:"originalImage"`
	ResultImages   GeneratedImages  `json:"resultImages"`
	PromptSummary  string           `json:"promptSummary"`
	Config         GenerationConfig `json:"config"`
	UnlockedAngles bool             `json:"unlockedAngles"`
	MissingAngles  []Angle          `json:"missingAngles,omitempty"`
}

type TransactionKind string

const (
	TransactionUsage    TransactionKind = "USAGE"
	TransactionPurchase TransactionKind = "PURCHASE"
	TransactionGrant    TransactionKind = "GRANT"
	TransactionRefund   TransactionKind = "REFUND"
)

type CreditTransaction struct {
	ID           int64           `json:"id"`
	AccountEmail string          `json:"-"`
	Amount       int             `json:"amount"`
	Kind         TransactionKind `json:"kind"`
	Description  string          `json:"description"`
	BalanceAfter int             `json:"balanceAfter"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type SalonService struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Duration string `json:"duration"`
}

type Salon struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	URI            string         `json:"uri"`
	PriceRange     string         `json:"priceRange"`
	Specialty      string         `json:"specialty"`
	AvailableSlots int            `json:"availableSlots"`
	Distance       string         `json:"distance"`
	Rating         float64        `json:"rating"`
	Address        string         `json:"address"`
	Description    string         `json:"description"`
	ImageURL       string         `json:"imageUrl"`
	Stylists       []string       `json:"stylists"`
	Services       []SalonService `json:"services"`
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type Booking struct {
	ID           string        `json:"id"`
	AccountEmail string        `json:"-"`
	SalonID      string        `json:"salonId"`
	SalonName    string        `json:"salonName"`
	Service      string        `json:"service"`
	Stylist      string        `json:"stylist,omitempty"`
	Date         string        `json:"date"`
	Time         string        `json:"time"`
	Price        int           `json:"price"`
	Status       BookingStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type WalkInCode struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	SalonID   string    `json:"salonId"`
	MaxUses   int       `json:"maxUses"`
	Uses      int       `json:"uses"`
	CreatedAt time.Time `json:"createdAt"`
}

type TierPlan struct {
	Tier            Tier      `json:"tier"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Currency        string    `json:"currency"`
	PriceMinorUnits int       `json:"priceMinorUnits"`
	Credits         int       `json:"credits"`
	IsActive        bool      `json:"isActive"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Payment struct {
	ID             int64
	AccountEmail   string
	Tier           Tier
	Provider       string
	ProviderCharge string
	Currency       string
	Amount         int
	Status         string
	RawPayload     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
