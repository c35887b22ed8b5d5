package constants

// ExpectedColumns is the transaction schema accepted for scoring, in normalized form.
// Column order in an uploaded file is not significant.
var ExpectedColumns = []string{
	"transaction_id",
	"user_name",
	"credit_card_type",
	"transaction_amount",
	"merchant_category",
	"datetime",
	"bank",
	"location",
	"is_foreign",
	"transaction_type",
	"transaction_frequency",
	"time_since_last_txn_hrs",
}

// Prediction columns appended to every scored record, in this order.
const (
	NeuralPredictionColumn = "TF_Prediction"
	TreePredictionColumn   = "XGB_Prediction"
	MetaPredictionColumn   = "Meta_Prediction"
)

// PredictionColumns lists the appended columns in augmentation order.
var PredictionColumns = []string{
	NeuralPredictionColumn,
	TreePredictionColumn,
	MetaPredictionColumn,
}

// Label is the categorical value written into a prediction column.
type Label string

const (
	LabelFraudulent    Label = "Fraudulent"
	LabelNonFraudulent Label = "Non-Fraudulent"
)

// LabelFor maps a binary classifier output to its label.
func LabelFor(class int) Label {
	if class == 1 {
		return LabelFraudulent
	}
	return LabelNonFraudulent
}

// IsExpectedColumn reports whether name (already normalized) belongs to the schema.
func IsExpectedColumn(name string) bool {
	for _, c := range ExpectedColumns {
		if c == name {
			return true
		}
	}
	return false
}
