package store

import (
	"errors"

	"routedesk/internal/fieldmap"
	"routedesk/internal/model"
)

// Native column names of the hosted orders table.
var orderColumns = fieldmap.MustNew("orders",
	fieldmap.Pair{Native: "שם הלקוח", Canonical: model.FieldCustomerName},
	fieldmap.Pair{Native: "טלפון", Canonical: model.FieldPhone},
	fieldmap.Pair{Native: "סטטוס לקוח", Canonical: model.FieldCustomerStatus},
	fieldmap.Pair{Native: "Status", Canonical: model.FieldStatus},
	fieldmap.Pair{Native: "סטטוס הזמנה", Canonical: model.FieldOrderStatus},
	fieldmap.Pair{Native: "קופת חולים", Canonical: model.FieldHealthFund},
	fieldmap.Pair{Native: "לקוח נפתח ע״י", Canonical: model.FieldOpenedBy},
	fieldmap.Pair{Native: "פקס", Canonical: model.FieldFax},
	fieldmap.Pair{Native: "כתובת", Canonical: model.FieldAddress},
	fieldmap.Pair{Native: "עיר", Canonical: model.FieldCity},
	fieldmap.Pair{Native: "סוכן", Canonical: model.FieldAgent},
	fieldmap.Pair{Native: "מסמכים", Canonical: model.FieldDocuments},
)

// Native column names of the hosted routes table.
var routeColumns = fieldmap.MustNew("routes",
	fieldmap.Pair{Native: "שם מסלול", Canonical: model.FieldRouteName},
	fieldmap.Pair{Native: "נהג", Canonical: model.FieldDriver},
	fieldmap.Pair{Native: "תאריך משלוח", Canonical: model.FieldDeliveryDate},
	fieldmap.Pair{Native: "סטטוס מסלול", Canonical: model.FieldRouteStatus},
	fieldmap.Pair{Native: "הזמנות", Canonical: model.FieldOrderIDs},
	fieldmap.Pair{Native: "פרטי עצירות", Canonical: model.FieldStops},
	fieldmap.Pair{Native: "מספר עצירות", Canonical: model.FieldStopCount},
	fieldmap.Pair{Native: "מרחק משוער", Canonical: model.FieldEstimatedDistance},
	fieldmap.Pair{Native: "זמן משוער", Canonical: model.FieldEstimatedTime},
	fieldmap.Pair{Native: "הערות", Canonical: model.FieldNotes},
)

// The scheduled value carries a trailing space in the hosted table, and the
// out-of-stock value is stored misspelled. Both are written back verbatim.
var orderStatusValues = fieldmap.MustEnum("orderStatus",
	[]fieldmap.Pair{
		{Native: "ממתין לתאום", Canonical: string(model.OrderWaiting)},
		{Native: "תואמה אספקה ", Canonical: string(model.OrderScheduled)},
		{Native: "איו במלאי", Canonical: string(model.OrderOutOfStock)},
		{Native: "סופק", Canonical: string(model.OrderDelivered)},
	},
	map[string]string{
		"תואמה אספקה": string(model.OrderScheduled),
		"אין במלאי":   string(model.OrderOutOfStock),
	},
)

var taskStatusValues = fieldmap.MustEnum("status",
	[]fieldmap.Pair{
		{Native: "Todo", Canonical: string(model.TaskTodo)},
		{Native: "In progress", Canonical: string(model.TaskInProgress)},
		{Native: "Done", Canonical: string(model.TaskDone)},
	}, nil)

var customerStatusValues = fieldmap.MustEnum("customerStatus",
	[]fieldmap.Pair{
		{Native: "לקוח חדש", Canonical: string(model.CustomerNew)},
		{Native: "לקוח קיים", Canonical: string(model.CustomerExisting)},
	}, nil)

var routeStatusValues = fieldmap.MustEnum("routeStatus",
	[]fieldmap.Pair{
		{Native: "מאושר", Canonical: string(model.RouteApproved)},
		{Native: "בביצוע", Canonical: string(model.RouteInProgress)},
		{Native: "הושלם", Canonical: string(model.RouteCompleted)},
		{Native: "בוטל", Canonical: string(model.RouteCancelled)},
	}, nil)

// ValidateMappings checks every field and value table for completeness
// against the canonical model.
func ValidateMappings() error {
	return errors.Join(
		orderColumns.Validate(model.OrderFields),
		routeColumns.Validate(model.RouteFields),
		orderStatusValues.Validate([]string{
			string(model.OrderWaiting), string(model.OrderScheduled),
			string(model.OrderOutOfStock), string(model.OrderDelivered),
		}),
		taskStatusValues.Validate([]string{string(model.TaskTodo), string(model.TaskInProgress), string(model.TaskDone)}),
		customerStatusValues.Validate([]string{string(model.CustomerNew), string(model.CustomerExisting)}),
		routeStatusValues.Validate([]string{
			string(model.RouteApproved), string(model.RouteInProgress),
			string(model.RouteCompleted), string(model.RouteCancelled),
		}),
	)
}
