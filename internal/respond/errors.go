package respond

import (
	"fmt"
	"strings"

	"kirana-voice/internal/engine"
)

// phrasebook maps error codes to spoken lines, used when the result carries
// no richer message or payload of its own.
var phrasebook = map[string]string{
	engine.CodeCustomerNotFound:  "Customer nahi mila. Naya customer add karein?",
	engine.CodeProductNotFound:   "Yeh item catalogue mein nahi hai.",
	engine.CodeNoInvoice:         "Koi bill nahi mila.",
	engine.CodeNoReminder:        "Koi reminder laga hua nahi hai.",
	engine.CodeNoDraft:           "Koi pending bill nahi hai.",
	engine.CodeNoPendingEmail:    "Koi bill email ka intezaar nahi kar raha.",
	engine.CodeNoPendingSend:     "Koi bhejne wala bill pending nahi hai.",
	engine.CodeInvalidEmail:      "Email address samajh nahi aaya. Phir se boliye.",
	engine.CodeMissingAmount:     "Kitne paise? Amount bataiye.",
	engine.CodeMissingDatetime:   "Kab? Time bataiye.",
	engine.CodeMissingPhone:      "Phone number nahi hai. Pehle number add karo.",
	engine.CodeAlreadyCancelled:  "Yeh bill pehle se cancel hai.",
	engine.CodeInsufficientStock: "Stock kam hai, bill nahi bana.",
	engine.CodeConflict:          "Yeh naam pehle se hai.",
	engine.CodeUnauthorized:      "Yeh kaam sirf admin kar sakta hai.",
	engine.CodeInvalidOTP:        "Code galat hai ya expire ho gaya. Phir se try karo.",
	engine.CodeSendFailed:        "Bhej nahi paya. Thodi der baad phir try karo.",
	engine.CodeUnknownIntent:     "Samajh nahi aaya. Phir se boliye.",
	engine.CodeInternal:          apology,
}

// renderError speaks a failed result. Payload-carrying failures (ambiguous
// customers, duplicate names, multiple drafts) enumerate the choices so the
// shopkeeper can answer by name.
func (t *Templater) renderError(res engine.Result) string {
	switch res.Error {
	case engine.CodeMultipleCustomers:
		if data, okd := res.Data.(engine.CandidatesData); okd && len(data.Customers) > 0 {
			return fmt.Sprintf("%d customers mile %s naam se: %s. Kaun sa?",
				len(data.Customers), data.Query, candidateNames(data))
		}
	case engine.CodeDuplicateFound:
		if data, okd := res.Data.(engine.CandidatesData); okd && len(data.Customers) > 0 {
			return fmt.Sprintf("%s naam se milta-julta customer pehle se hai: %s. Naya hi banau?",
				data.Query, candidateNames(data))
		}
	case engine.CodeCustomerNotFound:
		if data, okd := res.Data.(engine.CandidatesData); okd && data.Query != "" {
			return fmt.Sprintf("%s nahi mila. Naya customer add karein?", data.Query)
		}
		// No spoken name at all: the executor's "pehle naam boliye" fits
		// better than the add-a-customer suggestion.
		if res.Message != "" {
			return res.Message
		}
	case engine.CodeMultipleDrafts:
		if data, okd := res.Data.(engine.DraftListData); okd && len(data.Drafts) > 0 {
			names := make([]string, 0, len(data.Drafts))
			for _, d := range data.Drafts {
				names = append(names, d.CustomerName)
			}
			return fmt.Sprintf("%d bill pending hain: %s. Kiska bill?",
				len(data.Drafts), strings.Join(names, ", "))
		}
	case engine.CodeOTPSent:
		// The engine's message names the customer; keep it.
		if res.Message != "" {
			return res.Message
		}
		return "Confirmation code admin email par bheja hai. Code boliye."
	}

	// Validation failures carry a tailored question from the executor.
	if res.Error == engine.CodeValidation && res.Message != "" {
		return res.Message
	}
	if line, okp := phrasebook[res.Error]; okp {
		return line
	}
	if res.Message != "" {
		return res.Message
	}
	return apology
}

func candidateNames(data engine.CandidatesData) string {
	names := make([]string, 0, len(data.Customers))
	for _, c := range data.Customers {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}
