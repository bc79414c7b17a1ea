package shopify

import "fmt"

// NotifyError means Shopify rejected a resolve/reject mutation, either at
// the transport level or via userErrors inside a 2xx body. The local record
// is already written by the time this surfaces; it is never rolled back.
type NotifyError struct {
	Operation string
	Status    int
	Detail    string
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("shopify %s failed: status=%d detail=%s", e.Operation, e.Status, e.Detail)
}
