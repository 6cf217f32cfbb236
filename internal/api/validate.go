package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"routedesk/internal/model"
)

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
	_ = v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
		return model.OrderStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
		return model.TaskStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("routestatus", func(fl validator.FieldLevel) bool {
		return model.RouteStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("driver", func(fl validator.FieldLevel) bool {
		return model.Driver(fl.Field().String()).Valid()
	})
	return v
}

// decode reads a JSON body into dst and validates it. On failure the problem
// has already been written.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid request", describe(err), r.URL.Path)
		return false
	}
	return true
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			parts[i] = fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			parts[i] = fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}

type patchOrderRequest struct {
	CustomerName *string `json:"customerName,omitempty" validate:"omitnil,min=1,max=200"`
	Phone        *string `json:"phone,omitempty" validate:"omitnil,max=40"`
	Status       *string `json:"status,omitempty" validate:"omitnil,taskstatus"`
	OrderStatus  *string `json:"orderStatus,omitempty" validate:"omitnil,orderstatus"`
	HealthFund   *string `json:"healthFund,omitempty"`
	OpenedBy     *string `json:"openedBy,omitempty"`
	Fax          *string `json:"fax,omitempty"`
	Address      *string `json:"address,omitempty" validate:"omitnil,max=300"`
	City         *string `json:"city,omitempty" validate:"omitnil,max=100"`
	Agent        *string `json:"agent,omitempty"`
}

func (p patchOrderRequest) patch() model.OrderPatch {
	out := model.OrderPatch{
		CustomerName: p.CustomerName,
		Phone:        p.Phone,
		HealthFund:   p.HealthFund,
		OpenedBy:     p.OpenedBy,
		Fax:          p.Fax,
		Address:      p.Address,
		City:         p.City,
		Agent:        p.Agent,
	}
	if p.Status != nil {
		s := model.TaskStatus(*p.Status)
		out.Status = &s
	}
	if p.OrderStatus != nil {
		s := model.OrderStatus(*p.OrderStatus)
		out.OrderStatus = &s
	}
	return out
}

type orderIDsRequest struct {
	OrderIDs []string `json:"orderIds" validate:"required,min=1,max=200,dive,required"`
}

type approveRequest struct {
	OrderIDs      []string `json:"orderIds" validate:"required,min=1,max=200,unique,dive,required"`
	Driver        string   `json:"driver" validate:"required,driver"`
	DeliveryDate  string   `json:"deliveryDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TotalDistance int      `json:"totalDistance" validate:"gte=0"`
	EstimatedTime int      `json:"estimatedTime,omitempty" validate:"gte=0"`
	Notes         string   `json:"notes,omitempty" validate:"max=1000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,routestatus"`
}

type navlinkRequest struct {
	OrderIDs []string `json:"orderIds" validate:"required,min=1,dive,required"`
	Origin   string   `json:"origin,omitempty" validate:"max=300"`
}
