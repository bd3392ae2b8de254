package observability

import (
	"errors"
	"strconv"

	"github.com/coachpo/poolkit/errs"
)

// AggregateErrors folds the non-nil entries of failures into one errs.E
// tagged with scope, op and code, and logs the individual messages once.
// It returns nil when every entry is nil.
func AggregateErrors(scope, op string, code errs.Code, failures []error, fields ...Field) error {
	filtered := make([]error, 0, len(failures))
	messages := make([]string, 0, len(failures))
	for _, err := range failures {
		if err == nil {
			continue
		}
		filtered = append(filtered, err)
		messages = append(messages, err.Error())
	}
	if len(filtered) == 0 {
		return nil
	}

	logFields := make([]Field, 0, len(fields)+4)
	logFields = append(logFields, fields...)
	logFields = append(logFields,
		F("scope", scope),
		F("op", op),
		F("error_count", len(filtered)),
		F("errors", messages),
	)
	Log().Error("aggregated errors", logFields...)

	return errs.New(scope, code,
		errs.WithOp(op),
		errs.WithMessage(strconv.Itoa(len(filtered))+" of "+strconv.Itoa(len(failures))+" failed"),
		errs.WithCause(errors.Join(filtered...)))
}
