package observability

const (
	MUsecaseRequests     MetricKey = "usecase_requests_total"
	MUsecaseDuration     MetricKey = "usecase_duration_seconds"
	MInputRejections     MetricKey = "vending_input_rejections_total"
	MUnitsSold           MetricKey = "vending_units_sold_total"
	MCashDeposited       MetricKey = "vending_cash_deposited_total"
	MSlotStock           MetricKey = "vending_slot_stock"
	MVaultBalance        MetricKey = "vending_vault_balance"
	MHTTPRequests        MetricKey = "http_requests_total"
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"
	MEventsPublished     MetricKey = "events_published_total"
)
