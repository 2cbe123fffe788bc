package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"atelier/internal/core"
	"atelier/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := core.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := core.ParseAmount(fl.Field().String())
		return err == nil
	})
	return v
}

// bindAndValidate decodes a JSON body into dst and runs the struct validator.
func bindAndValidate(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Validation(op, fmt.Errorf("%w: empty body", errInvalidBody))
		}
		return core.Validation(op, errInvalidBody)
	}
	if err := validate.Struct(dst); err != nil {
		return core.Validation(op, describeValidation(err))
	}
	return nil
}

// describeValidation turns validator errors into one readable sentence.
func describeValidation(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "date":
			msgs = append(msgs, field+" must be a date (YYYY-MM-DD)")
		case "amount":
			msgs = append(msgs, field+" must be a non-negative amount")
		case "excluded_with":
			msgs = append(msgs, fmt.Sprintf("%s cannot be combined with %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// amount parses an optional amount; empty means zero.
func amount(n json.Number) decimal.Decimal {
	if n == "" {
		return core.Zero
	}
	d, err := core.ParseAmount(n.String())
	if err != nil {
		return core.Zero
	}
	return d
}

// date parses an optional date; empty means the zero Date.
func date(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

type projectRequest struct {
	Name      string      `json:"name" validate:"required,max=200"`
	Client    string      `json:"client" validate:"max=200"`
	Location  string      `json:"location" validate:"max=200"`
	Budget    json.Number `json:"budget" validate:"omitempty,amount"`
	Status    string      `json:"status" validate:"omitempty,oneof=active on_hold completed"`
	StartDate string      `json:"startDate" validate:"omitempty,date"`
}

func (p projectRequest) toProject() core.Project {
	return core.Project{
		Name:      sanitizeInput(p.Name),
		Client:    sanitizeInput(p.Client),
		Location:  sanitizeInput(p.Location),
		Budget:    amount(p.Budget),
		Status:    p.Status,
		StartDate: date(p.StartDate),
	}
}

type supplierRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Contact  string `json:"contact" validate:"max=200"`
	Phone    string `json:"phone" validate:"max=40"`
	Category string `json:"category" validate:"max=100"`
}

func (s supplierRequest) toSupplier() core.Supplier {
	return core.Supplier{
		Name:     sanitizeInput(s.Name),
		Contact:  sanitizeInput(s.Contact),
		Phone:    sanitizeInput(s.Phone),
		Category: sanitizeInput(s.Category),
	}
}

type teamMemberRequest struct {
	Name      string      `json:"name" validate:"required,max=200"`
	Role      string      `json:"role" validate:"max=100"`
	DailyRate json.Number `json:"dailyRate" validate:"omitempty,amount"`
	Phone     string      `json:"phone" validate:"max=40"`
}

func (m teamMemberRequest) toTeamMember() core.TeamMember {
	return core.TeamMember{
		Name:      sanitizeInput(m.Name),
		Role:      sanitizeInput(m.Role),
		DailyRate: amount(m.DailyRate),
		Phone:     sanitizeInput(m.Phone),
	}
}

// chargeRequest is the body of both expense and work-entry creation.
type chargeRequest struct {
	Amount        json.Number `json:"amount" validate:"required,amount"`
	PaymentStatus string      `json:"paymentStatus" validate:"max=40"`
	ProjectID     string      `json:"projectId"`
	SupplierID    string      `json:"supplierId"`
	TeamMemberID  string      `json:"teamMemberId"`
	Date          string      `json:"date" validate:"omitempty,date"`
	Description   string      `json:"description" validate:"required,max=500"`
	Category      string      `json:"category" validate:"max=100"`
	ImageURLs     []string    `json:"imageUrls" validate:"max=10,dive,max=2048"`
}

func (c chargeRequest) toCharge() core.Charge {
	return core.Charge{
		Amount:        amount(c.Amount),
		PaymentStatus: sanitizeInput(c.PaymentStatus),
		ProjectID:     sanitizeInput(c.ProjectID),
		SupplierID:    sanitizeInput(c.SupplierID),
		TeamMemberID:  sanitizeInput(c.TeamMemberID),
		Date:          date(c.Date),
		Description:   sanitizeInput(c.Description),
		Category:      sanitizeInput(c.Category),
		ImageURLs:     c.ImageURLs,
	}
}

type allocationRequest struct {
	ChargeID string      `json:"chargeId" validate:"required"`
	Amount   json.Number `json:"amount" validate:"required,amount"`
}

// paymentRequest links a payment to one charge (chargeId), to explicit
// allocations, to several charges filled oldest first (chargeIds), or to
// nothing at all.
type paymentRequest struct {
	Kind           string              `json:"kind" validate:"required,oneof=supplier team project"`
	Amount         json.Number         `json:"amount" validate:"required,amount"`
	ChargeID       string              `json:"chargeId" validate:"omitempty,excluded_with=ChargeIDs Allocations"`
	ChargeIDs      []string            `json:"chargeIds" validate:"omitempty,excluded_with=Allocations,dive,required"`
	Allocations    []allocationRequest `json:"allocations" validate:"omitempty,dive"`
	ProjectID      string              `json:"projectId"`
	SupplierID     string              `json:"supplierId"`
	TeamMemberID   string              `json:"teamMemberId"`
	Date           string              `json:"date" validate:"omitempty,date"`
	Mode           string              `json:"mode" validate:"required,oneof=cash bank_transfer cheque upi card other"`
	Reference      string              `json:"reference" validate:"max=100"`
	Note           string              `json:"note" validate:"max=500"`
	AllowDuplicate bool                `json:"allowDuplicate"`
}

func (p paymentRequest) toPayment() core.Payment {
	out := core.Payment{
		Kind:         core.PaymentKind(p.Kind),
		Amount:       amount(p.Amount),
		ChargeID:     sanitizeInput(p.ChargeID),
		ProjectID:    sanitizeInput(p.ProjectID),
		SupplierID:   sanitizeInput(p.SupplierID),
		TeamMemberID: sanitizeInput(p.TeamMemberID),
		Date:         date(p.Date),
		Mode:         core.PaymentMode(p.Mode),
		Reference:    sanitizeInput(p.Reference),
		Note:         sanitizeInput(p.Note),
	}
	for _, a := range p.Allocations {
		out.Allocations = append(out.Allocations, core.Allocation{ChargeID: sanitizeInput(a.ChargeID), Amount: amount(a.Amount)})
	}
	return out
}

func (p paymentRequest) options() services.PaymentOptions {
	return services.PaymentOptions{AllowDuplicate: p.AllowDuplicate}
}

type taskRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Status   string `json:"status" validate:"omitempty,oneof=todo in_progress completed blocked"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate  string `json:"dueDate" validate:"omitempty,date"`
}

func (t taskRequest) toTask() core.Task {
	return core.Task{
		Title:    sanitizeInput(t.Title),
		Status:   core.TaskStatus(t.Status),
		Priority: core.TaskPriority(t.Priority),
		DueDate:  date(t.DueDate),
	}
}

// taskPatchRequest distinguishes absent fields (nil) from present ones.
type taskPatchRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	Status   *string `json:"status" validate:"omitempty,oneof=todo in_progress completed blocked"`
	Priority *string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate  *string `json:"dueDate"`
}

func (t taskPatchRequest) toPatch() (services.TaskPatch, error) {
	var patch services.TaskPatch
	if t.Title != nil {
		title := sanitizeInput(*t.Title)
		patch.Title = &title
	}
	if t.Status != nil {
		st := core.TaskStatus(*t.Status)
		patch.Status = &st
	}
	if t.Priority != nil {
		p := core.TaskPriority(*t.Priority)
		patch.Priority = &p
	}
	if t.DueDate != nil {
		var d core.Date
		if *t.DueDate != "" {
			parsed, err := core.ParseDate(*t.DueDate)
			if err != nil {
				return services.TaskPatch{}, core.Validation("update task", errors.New("dueDate must be a date (YYYY-MM-DD)"))
			}
			d = parsed
		}
		patch.DueDate = &d
	}
	return patch, nil
}
