package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaidStatus is the explicit "fully paid" flag a charge may carry.
const PaidStatus = "Paid"

const (
	ChargeExpense ChargeKind = "expense"
	ChargeWork    ChargeKind = "work"
)

const (
	PaymentSupplier PaymentKind = "supplier"
	PaymentTeam     PaymentKind = "team"
	PaymentProject  PaymentKind = "project"
)

const (
	OwnerProject    OwnerKind = "project"
	OwnerSupplier   OwnerKind = "supplier"
	OwnerTeamMember OwnerKind = "team_member"
)

const (
	ModeCash         PaymentMode = "cash"
	ModeBankTransfer PaymentMode = "bank_transfer"
	ModeCheque       PaymentMode = "cheque"
	ModeUPI          PaymentMode = "upi"
	ModeCard         PaymentMode = "card"
	ModeOther        PaymentMode = "other"
)

type (
	ChargeKind  string
	PaymentKind string
	OwnerKind   string
	PaymentMode string

	// Charge is a billable item: an expense or a team member's work entry.
	Charge struct {
		ID            string          `json:"id"`
		Kind          ChargeKind      `json:"kind"`
		Amount        decimal.Decimal `json:"amount"`
		PaymentStatus string          `json:"paymentStatus,omitempty"`
		ProjectID     string          `json:"projectId,omitempty"`
		SupplierID    string          `json:"supplierId,omitempty"`
		TeamMemberID  string          `json:"teamMemberId,omitempty"`
		Date          Date            `json:"date"`
		Description   string          `json:"description"`
		Category      string          `json:"category,omitempty"`
		ImageURLs     []string        `json:"imageUrls,omitempty"`
		Deleted       bool            `json:"deleted"`
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}

	// Allocation is the share of a multi-charge payment settled against one charge.
	Allocation struct {
		ChargeID string          `json:"chargeId"`
		Amount   decimal.Decimal `json:"amount"`
	}

	// Payment settles one charge (ChargeID), several charges (Allocations),
	// or nothing in particular (a general payment to its owner).
	Payment struct {
		ID           string          `json:"id"`
		Kind         PaymentKind     `json:"kind"`
		Amount       decimal.Decimal `json:"amount"`
		ChargeID     string          `json:"chargeId,omitempty"`
		Allocations  []Allocation    `json:"allocations,omitempty"`
		ProjectID    string          `json:"projectId,omitempty"`
		SupplierID   string          `json:"supplierId,omitempty"`
		TeamMemberID string          `json:"teamMemberId,omitempty"`
		Date         Date            `json:"date"`
		Mode         PaymentMode     `json:"mode"`
		Reference    string          `json:"reference,omitempty"`
		Note         string          `json:"note,omitempty"`
		Deleted      bool            `json:"deleted"`
		CreatedAt    time.Time       `json:"createdAt"`
	}

	Project struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Client    string          `json:"client,omitempty"`
		Location  string          `json:"location,omitempty"`
		Budget    decimal.Decimal `json:"budget"`
		Status    string          `json:"status"`
		StartDate Date            `json:"startDate"`
		Deleted   bool            `json:"deleted"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	Supplier struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Contact   string    `json:"contact,omitempty"`
		Phone     string    `json:"phone,omitempty"`
		Category  string    `json:"category,omitempty"`
		Deleted   bool      `json:"deleted"`
		CreatedAt time.Time `json:"createdAt"`
	}

	TeamMember struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Role      string          `json:"role,omitempty"`
		DailyRate decimal.Decimal `json:"dailyRate"`
		Phone     string          `json:"phone,omitempty"`
		Deleted   bool            `json:"deleted"`
		CreatedAt time.Time       `json:"createdAt"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrZeroAmount        = errors.New("amount must be greater than zero")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyDescription  = errors.New("empty description")
	ErrMissingOwner      = errors.New("missing owner reference")
	ErrInvalidKind       = errors.New("invalid kind")
	ErrInvalidMode       = errors.New("invalid payment mode")
	ErrInvalidAllocation = errors.New("invalid allocation")
	ErrZeroDate          = errors.New("date cannot be zero")
)

var validationSentinels = []error{
	ErrInvalidAmount, ErrNegativeAmount, ErrZeroAmount, ErrEmptyName, ErrEmptyDescription,
	ErrMissingOwner, ErrInvalidKind, ErrInvalidMode, ErrInvalidAllocation, ErrZeroDate,
	ErrInvalidTaskStatus, ErrInvalidPriority, ErrEmptyTitle,
}

// MarkedPaid reports whether the charge carries the explicit paid flag.
func (c Charge) MarkedPaid() bool {
	return c.PaymentStatus == PaidStatus
}

// Owner returns the id of the charge's owner of the given kind.
func (c Charge) Owner(kind OwnerKind) string {
	switch kind {
	case OwnerProject:
		return c.ProjectID
	case OwnerSupplier:
		return c.SupplierID
	case OwnerTeamMember:
		return c.TeamMemberID
	}
	return ""
}

func (c Charge) Validate() error {
	switch c.Kind {
	case ChargeExpense:
		if c.ProjectID == "" && c.SupplierID == "" {
			return ErrMissingOwner
		}
	case ChargeWork:
		if c.TeamMemberID == "" {
			return ErrMissingOwner
		}
	default:
		return ErrInvalidKind
	}
	if c.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if err := c.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(c.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(c.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

// Linked reports whether the payment settles at least one specific charge.
func (p Payment) Linked() bool {
	return p.ChargeID != "" || len(p.Allocations) > 0
}

// AmountFor returns the part of the payment applied to chargeID.
func (p Payment) AmountFor(chargeID string) decimal.Decimal {
	if chargeID == "" {
		return Zero
	}
	if p.ChargeID == chargeID {
		return p.Amount
	}
	total := Zero
	for _, a := range p.Allocations {
		if a.ChargeID == chargeID {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// ChargeIDs lists every charge the payment is linked to, in link order.
func (p Payment) ChargeIDs() []string {
	if p.ChargeID != "" {
		return []string{p.ChargeID}
	}
	ids := make([]string, 0, len(p.Allocations))
	seen := make(map[string]struct{}, len(p.Allocations))
	for _, a := range p.Allocations {
		if _, ok := seen[a.ChargeID]; ok {
			continue
		}
		seen[a.ChargeID] = struct{}{}
		ids = append(ids, a.ChargeID)
	}
	return ids
}

// Owner returns the id of the payment's owner of the given kind.
func (p Payment) Owner(kind OwnerKind) string {
	switch kind {
	case OwnerProject:
		return p.ProjectID
	case OwnerSupplier:
		return p.SupplierID
	case OwnerTeamMember:
		return p.TeamMemberID
	}
	return ""
}

func (p Payment) Validate() error {
	switch p.Kind {
	case PaymentSupplier:
		if p.SupplierID == "" {
			return ErrMissingOwner
		}
	case PaymentTeam:
		if p.TeamMemberID == "" {
			return ErrMissingOwner
		}
	case PaymentProject:
		if p.ProjectID == "" {
			return ErrMissingOwner
		}
	default:
		return ErrInvalidKind
	}
	if !p.Amount.IsPositive() {
		return ErrZeroAmount
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	switch p.Mode {
	case ModeCash, ModeBankTransfer, ModeCheque, ModeUPI, ModeCard, ModeOther:
	default:
		return ErrInvalidMode
	}
	if p.ChargeID != "" && len(p.Allocations) > 0 {
		return ErrInvalidAllocation
	}
	if len(p.Allocations) > 0 {
		sum := Zero
		for _, a := range p.Allocations {
			if a.ChargeID == "" || !a.Amount.IsPositive() {
				return ErrInvalidAllocation
			}
			sum = sum.Add(a.Amount)
		}
		if !sum.Equal(p.Amount) {
			return ErrInvalidAllocation
		}
	}
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.Budget.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (s Supplier) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (m TeamMember) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if m.DailyRate.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// ChargeKindForOwner returns the charge kind that belongs to an owner view.
func ChargeKindForOwner(kind OwnerKind) ChargeKind {
	if kind == OwnerTeamMember {
		return ChargeWork
	}
	return ChargeExpense
}

// ParseOwnerKind accepts the path spellings used by the API.
func ParseOwnerKind(s string) (OwnerKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "project", "projects":
		return OwnerProject, true
	case "supplier", "suppliers":
		return OwnerSupplier, true
	case "team", "team_member", "team-members", "team_members":
		return OwnerTeamMember, true
	}
	return "", false
}
