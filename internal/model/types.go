package model

import "strings"

// Canonical field names. Record-store adapters translate these to and from
// the native column names; nothing outside the adapters sees native names.
const (
	FieldCustomerName   = "customerName"
	FieldPhone          = "phone"
	FieldCustomerStatus = "customerStatus"
	FieldStatus         = "status"
	FieldOrderStatus    = "orderStatus"
	FieldHealthFund     = "healthFund"
	FieldOpenedBy       = "openedBy"
	FieldFax            = "fax"
	FieldAddress        = "address"
	FieldCity           = "city"
	FieldAgent          = "agent"
	FieldDocuments      = "documents"
)

// OrderFields lists every canonical order field that is stored as a column.
// id and created come from record metadata.
var OrderFields = []string{
	FieldCustomerName, FieldPhone, FieldCustomerStatus, FieldStatus, FieldOrderStatus,
	FieldHealthFund, FieldOpenedBy, FieldFax, FieldAddress, FieldCity, FieldAgent, FieldDocuments,
}

type OrderStatus string

const (
	OrderWaiting    OrderStatus = "waiting-for-coordination"
	OrderScheduled  OrderStatus = "scheduled"
	OrderOutOfStock OrderStatus = "out-of-stock"
	OrderDelivered  OrderStatus = "delivered"
)

var orderStatusLabels = map[OrderStatus]string{
	OrderWaiting:    "ממתין לתאום",
	OrderScheduled:  "תואמה אספקה",
	OrderOutOfStock: "אין במלאי",
	OrderDelivered:  "סופק",
}

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusLabels[s]
	return ok
}

// Label returns the display label; unknown values are shown as-is and an
// empty status reads "unknown".
func (s OrderStatus) Label() string {
	if s == "" {
		return "לא ידוע"
	}
	if l, ok := orderStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	return s == TaskTodo || s == TaskInProgress || s == TaskDone
}

// Label returns the display label. A missing task status reads as todo.
func (s TaskStatus) Label() string {
	switch s {
	case TaskInProgress:
		return "בטיפול"
	case TaskDone:
		return "הושלם"
	case "", TaskTodo:
		return "לביצוע"
	}
	return string(s)
}

type CustomerStatus string

const (
	CustomerNew      CustomerStatus = "new"
	CustomerExisting CustomerStatus = "existing"
)

// Attachment is a document stored alongside an order.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// Order is a customer order as held in the record store.
type Order struct {
	ID             string         `json:"id"`
	CustomerName   string         `json:"customerName"`
	Phone          string         `json:"phone,omitempty"`
	CustomerStatus CustomerStatus `json:"customerStatus,omitempty"`
	Status         TaskStatus     `json:"status,omitempty"`
	OrderStatus    OrderStatus    `json:"orderStatus,omitempty"`
	HealthFund     string         `json:"healthFund,omitempty"`
	OpenedBy       string         `json:"openedBy,omitempty"`
	Fax            string         `json:"fax,omitempty"`
	Address        string         `json:"address,omitempty"`
	City           string         `json:"city,omitempty"`
	Agent          string         `json:"agent,omitempty"`
	Documents      []Attachment   `json:"documents,omitempty"`
	Created        string         `json:"created"`
}

// Deliverable reports whether the order has both an address and a city.
func (o Order) Deliverable() bool {
	return strings.TrimSpace(o.Address) != "" && strings.TrimSpace(o.City) != ""
}

// OrderPatch is a partial update. Nil fields are left untouched.
type OrderPatch struct {
	CustomerName   *string         `json:"customerName,omitempty"`
	Phone          *string         `json:"phone,omitempty"`
	CustomerStatus *CustomerStatus `json:"customerStatus,omitempty"`
	Status         *TaskStatus     `json:"status,omitempty"`
	OrderStatus    *OrderStatus    `json:"orderStatus,omitempty"`
	HealthFund     *string         `json:"healthFund,omitempty"`
	OpenedBy       *string         `json:"openedBy,omitempty"`
	Fax            *string         `json:"fax,omitempty"`
	Address        *string         `json:"address,omitempty"`
	City           *string         `json:"city,omitempty"`
	Agent          *string         `json:"agent,omitempty"`
}

// StatusPatch is shorthand for a patch that only moves the order status.
func StatusPatch(s OrderStatus) OrderPatch {
	return OrderPatch{OrderStatus: &s}
}

// IsEmpty reports whether the patch changes nothing.
func (p OrderPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields returns the set fields keyed by canonical field name.
func (p OrderPatch) Fields() map[string]any {
	out := map[string]any{}
	setStr := func(k string, v *string) {
		if v != nil {
			out[k] = *v
		}
	}
	setStr(FieldCustomerName, p.CustomerName)
	setStr(FieldPhone, p.Phone)
	setStr(FieldHealthFund, p.HealthFund)
	setStr(FieldOpenedBy, p.OpenedBy)
	setStr(FieldFax, p.Fax)
	setStr(FieldAddress, p.Address)
	setStr(FieldCity, p.City)
	setStr(FieldAgent, p.Agent)
	if p.CustomerStatus != nil {
		out[FieldCustomerStatus] = *p.CustomerStatus
	}
	if p.Status != nil {
		out[FieldStatus] = *p.Status
	}
	if p.OrderStatus != nil {
		out[FieldOrderStatus] = *p.OrderStatus
	}
	return out
}

// Apply returns a copy of o with the patch applied.
func (p OrderPatch) Apply(o Order) Order {
	if p.CustomerName != nil {
		o.CustomerName = *p.CustomerName
	}
	if p.Phone != nil {
		o.Phone = *p.Phone
	}
	if p.CustomerStatus != nil {
		o.CustomerStatus = *p.CustomerStatus
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.OrderStatus != nil {
		o.OrderStatus = *p.OrderStatus
	}
	if p.HealthFund != nil {
		o.HealthFund = *p.HealthFund
	}
	if p.OpenedBy != nil {
		o.OpenedBy = *p.OpenedBy
	}
	if p.Fax != nil {
		o.Fax = *p.Fax
	}
	if p.Address != nil {
		o.Address = *p.Address
	}
	if p.City != nil {
		o.City = *p.City
	}
	if p.Agent != nil {
		o.Agent = *p.Agent
	}
	return o
}

// OrderUpdate pairs a record id with the patch to apply to it.
type OrderUpdate struct {
	ID    string
	Patch OrderPatch
}

// IndexOrders maps order id to order.
func IndexOrders(orders []Order) map[string]Order {
	m := make(map[string]Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return m
}
