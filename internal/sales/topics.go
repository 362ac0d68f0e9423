package sales

const TopicOrders = "sales.orders"

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID ID) []byte { return []byte(orderID) }
