package enum

type Operation string

const (
	OperationAddProduct          Operation = "add_product"
	OperationRemoveProduct       Operation = "remove_product"
	OperationUpdateProductAmount Operation = "update_product_amount"
)
