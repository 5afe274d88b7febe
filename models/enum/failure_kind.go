package enum

// FailureKind 表示購物車操作失敗的原因
type FailureKind string

const (
	FailureKindOutOfStock    FailureKind = "out_of_stock"
	FailureKindNotFound      FailureKind = "not_found"
	FailureKindRemoteFailure FailureKind = "remote_failure"
	FailureKindUnexpected    FailureKind = "unexpected"
)
