package ai

// Intent names the classifier may emit. The dispatcher routes on these;
// anything else is coerced to IntentUnknown before it leaves this package.
const (
	IntentTotalPending        = "TOTAL_PENDING_AMOUNT"
	IntentListBalances        = "LIST_CUSTOMER_BALANCES"
	IntentCheckBalance        = "CHECK_BALANCE"
	IntentCreateInvoice       = "CREATE_INVOICE"
	IntentConfirmInvoice      = "CONFIRM_INVOICE"
	IntentShowPendingInvoice  = "SHOW_PENDING_INVOICE"
	IntentToggleGST           = "TOGGLE_GST"
	IntentProvideEmail        = "PROVIDE_EMAIL"
	IntentSendInvoice         = "SEND_INVOICE"
	IntentCreateReminder      = "CREATE_REMINDER"
	IntentRecordPayment       = "RECORD_PAYMENT"
	IntentAddCredit           = "ADD_CREDIT"
	IntentCheckStock          = "CHECK_STOCK"
	IntentCancelInvoice       = "CANCEL_INVOICE"
	IntentCancelReminder      = "CANCEL_REMINDER"
	IntentListReminders       = "LIST_REMINDERS"
	IntentCreateCustomer      = "CREATE_CUSTOMER"
	IntentModifyReminder      = "MODIFY_REMINDER"
	IntentDailySummary        = "DAILY_SUMMARY"
	IntentUpdateCustomer      = "UPDATE_CUSTOMER"
	IntentUpdateCustomerPhone = "UPDATE_CUSTOMER_PHONE"
	IntentGetCustomerInfo     = "GET_CUSTOMER_INFO"
	IntentDeleteCustomerData  = "DELETE_CUSTOMER_DATA"
	IntentSwitchLanguage      = "SWITCH_LANGUAGE"
	IntentStartRecording      = "START_RECORDING"
	IntentStopRecording       = "STOP_RECORDING"
	IntentUnknown             = "UNKNOWN"
)

// AllIntents lists every dispatchable intent, in dispatch-table order.
var AllIntents = []string{
	IntentTotalPending,
	IntentListBalances,
	IntentCheckBalance,
	IntentCreateInvoice,
	IntentConfirmInvoice,
	IntentShowPendingInvoice,
	IntentToggleGST,
	IntentProvideEmail,
	IntentSendInvoice,
	IntentCreateReminder,
	IntentRecordPayment,
	IntentAddCredit,
	IntentCheckStock,
	IntentCancelInvoice,
	IntentCancelReminder,
	IntentListReminders,
	IntentCreateCustomer,
	IntentModifyReminder,
	IntentDailySummary,
	IntentUpdateCustomer,
	IntentUpdateCustomerPhone,
	IntentGetCustomerInfo,
	IntentDeleteCustomerData,
	IntentSwitchLanguage,
	IntentStartRecording,
	IntentStopRecording,
	IntentUnknown,
}

var validIntents = func() map[string]bool {
	m := make(map[string]bool, len(AllIntents))
	for _, it := range AllIntents {
		m[it] = true
	}
	return m
}()

// ValidIntent reports whether the classifier output names a known intent.
func ValidIntent(intent string) bool {
	return validIntents[intent]
}
