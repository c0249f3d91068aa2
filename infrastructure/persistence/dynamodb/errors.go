package dynamodb

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const conditionalCheckFailed = "ConditionalCheckFailed"

// isConditionFailed reports whether a single-item write failed its condition expression
func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

// failedConditions returns the positions of transaction items whose condition failed. ok is
// false when err is not a cancelled transaction.
func failedConditions(err error) (positions []int, ok bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false
	}
	for i, reason := range tce.CancellationReasons {
		if reason.Code != nil && *reason.Code == conditionalCheckFailed {
			positions = append(positions, i)
		}
	}
	return positions, true
}

// conditionFailedAt reports whether the transaction item at position failed its condition
func conditionFailedAt(err error, position int) bool {
	positions, ok := failedConditions(err)
	if !ok {
		return false
	}
	for _, p := range positions {
		if p == position {
			return true
		}
	}
	return false
}

// isRetryableConflict reports a cancelled transaction that lost to a concurrent one
func isRetryableConflict(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if reason.Code != nil && *reason.Code == "TransactionConflict" {
			return true
		}
	}
	return false
}

// isCancelled reports whether err is a cancelled transaction, whatever the reason
func isCancelled(err error) bool {
	_, ok := failedConditions(err)
	return ok
}
