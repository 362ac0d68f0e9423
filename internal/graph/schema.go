package graph

const schemaSDL = `
schema {
	query: Query
	mutation: Mutation
}

scalar Time

enum OrderStatus {
	PENDING
	COMPLETED
	CANCELED
}

type User {
	id: ID!
	name: String!
	surname: String!
	email: String!
	createdAt: Time
}

type Token {
	token: String!
}

type Product {
	id: ID!
	name: String!
	stock: Int!
	price: Float!
	createdAt: Time!
}

type Client {
	id: ID!
	name: String!
	surname: String!
	company: String!
	email: String!
	phone: String
	owner: ID!
	createdAt: Time!
}

type LineItem {
	productId: ID!
	product: Product
	quantity: Int!
	price: Float!
}

type Order {
	id: ID!
	clientId: ID!
	client: Client
	owner: ID!
	status: OrderStatus!
	items: [LineItem!]!
	total: Float!
	createdAt: Time!
}

type TopClient {
	total: Float!
	client: Client!
}

type TopSalesperson {
	total: Float!
	salesperson: User!
}

input UserInput {
	name: String!
	surname: String
	email: String!
	password: String!
}

input AuthInput {
	email: String!
	password: String!
}

input ProductInput {
	name: String!
	stock: Int!
	price: Float!
}

input ProductPatch {
	name: String
	stock: Int
	price: Float
}

input ClientInput {
	name: String!
	surname: String!
	company: String!
	email: String!
	phone: String
}

input ClientPatch {
	name: String
	surname: String
	company: String
	email: String
	phone: String
}

input LineItemInput {
	id: ID!
	quantity: Int!
}

input PlaceOrderInput {
	client: ID!
	items: [LineItemInput!]!
}

input ReviseOrderInput {
	client: ID
	items: [LineItemInput!]
	status: OrderStatus
}

type Query {
	me: User
	products: [Product!]!
	product(id: ID!): Product!
	searchProducts(text: String!): [Product!]!
	myClients: [Client!]!
	client(id: ID!): Client!
	myOrders: [Order!]!
	order(id: ID!): Order!
	ordersByStatus(status: OrderStatus!): [Order!]!
	topClients: [TopClient!]!
	topSalespeople: [TopSalesperson!]!
}

type Mutation {
	createUser(input: UserInput!): User!
	authenticate(input: AuthInput!): Token!
	createProduct(input: ProductInput!): Product!
	updateProduct(id: ID!, input: ProductPatch!): Product!
	deleteProduct(id: ID!): String!
	createClient(input: ClientInput!): Client!
	updateClient(id: ID!, input: ClientPatch!): Client!
	deleteClient(id: ID!): String!
	placeOrder(input: PlaceOrderInput!): Order!
	reviseOrder(id: ID!, input: ReviseOrderInput!): Order!
	deleteOrder(id: ID!): String!
}
`
