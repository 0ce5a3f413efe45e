package booking

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-tour/internal/common"
	"github.com/noah-isme/backend-tour/internal/pricing"
)

// CustomerDraft captures the caller-supplied customer fields.
type CustomerDraft struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

// LineItemDraft captures one submitted tour line. All optional fields default
// to their zero value; validation happens once at the boundary.
type LineItemDraft struct {
	TourID        string  `json:"tourId" validate:"required,uuid"`
	TourDate      string  `json:"tourDate" validate:"required"`
	Adults        int     `json:"adults" validate:"min=0"`
	Children      int     `json:"children" validate:"min=0"`
	AdultPrice    float64 `json:"adultPrice" validate:"min=0"`
	ChildrenPrice float64 `json:"childrenPrice" validate:"min=0"`
	Deposit       float64 `json:"deposit" validate:"min=0"`
	ShipID        *string `json:"shipId,omitempty" validate:"omitempty,uuid"`
	GuideID       *string `json:"guideId,omitempty" validate:"omitempty,uuid"`
	Notes         string  `json:"notes"`
}

// Draft is the full submitted booking payload for both Create and Update.
type Draft struct {
	Customer        CustomerDraft   `json:"customer"`
	Status          string          `json:"status" validate:"omitempty,oneof=pending confirmed paid refunded"`
	Notes           string          `json:"notes"`
	PaymentLocation string          `json:"paymentLocation"`
	OtherInfo       string          `json:"otherInfo"`
	MarketingSource string          `json:"marketingSource"`
	Commission      float64         `json:"commission" validate:"min=0"`
	Lines           []LineItemDraft `json:"lineItems" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the draft before any I/O and returns a human-readable
// validation error.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Customer.Name) == "" {
		return common.NewAppError(common.CodeValidation, "customer name is required", http.StatusBadRequest, nil)
	}
	if strings.TrimSpace(d.Customer.Email) == "" {
		return common.NewAppError(common.CodeValidation, "customer email is required", http.StatusBadRequest, nil)
	}
	if len(d.Lines) == 0 {
		return common.NewAppError(common.CodeValidation, "at least one tour line item is required", http.StatusBadRequest, nil)
	}
	if err := validate.Struct(d); err != nil {
		return common.NewAppError(common.CodeValidation, validationMessage(err), http.StatusBadRequest, err)
	}
	for i, line := range d.Lines {
		if _, err := parseTourDate(line.TourDate); err != nil {
			return common.NewAppError(common.CodeValidation, "invalid tour date on line item "+strconv.Itoa(i+1), http.StatusBadRequest, err)
		}
	}
	return nil
}

// status returns the draft status defaulted to pending.
func (d *Draft) status() Status {
	s := Status(strings.TrimSpace(d.Status))
	if !s.Valid() {
		return StatusPending
	}
	return s
}

// assembleLines converts drafts into line items with parsed identifiers and
// rounded deposits. Prices and balances are filled in by Synchronize.
func (d *Draft) assembleLines() ([]LineItem, error) {
	lines := make([]LineItem, 0, len(d.Lines))
	for _, ld := range d.Lines {
		tourID, err := uuid.Parse(ld.TourID)
		if err != nil {
			return nil, common.NewAppError(common.CodeValidation, "invalid tour id", http.StatusBadRequest, err)
		}
		date, err := parseTourDate(ld.TourDate)
		if err != nil {
			return nil, common.NewAppError(common.CodeValidation, "invalid tour date", http.StatusBadRequest, err)
		}
		line := LineItem{
			TourID:        tourID,
			TourDate:      date,
			Adults:        ld.Adults,
			Children:      ld.Children,
			AdultPrice:    ld.AdultPrice,
			ChildrenPrice: ld.ChildrenPrice,
			Deposit:       pricing.Round(ld.Deposit),
			Notes:         ld.Notes,
		}
		if ld.ShipID != nil {
			id, err := uuid.Parse(*ld.ShipID)
			if err != nil {
				return nil, common.NewAppError(common.CodeValidation, "invalid ship id", http.StatusBadRequest, err)
			}
			line.ShipID = &id
		}
		if ld.GuideID != nil {
			id, err := uuid.Parse(*ld.GuideID)
			if err != nil {
				return nil, common.NewAppError(common.CodeValidation, "invalid guide id", http.StatusBadRequest, err)
			}
			line.GuideID = &id
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseTourDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, trimmed)
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return strings.ToLower(fe.Field()) + " is required"
		case "email":
			return "invalid email address"
		case "min":
			return strings.ToLower(fe.Field()) + " is out of range"
		case "uuid":
			return strings.ToLower(fe.Field()) + " is not a valid identifier"
		case "oneof":
			return strings.ToLower(fe.Field()) + " has an unknown value"
		}
		return "invalid " + strings.ToLower(fe.Field())
	}
	return "invalid booking payload"
}
