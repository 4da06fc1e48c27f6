// Package orders holds the customer order records the support agents query,
// the stores that serve them (a CSV file or a SQL database through GORM) and
// the Service that exposes lookups as agent tools.
//
// Every tool answers with indented JSON. An unknown id produces the plain
// text "Order <id> not found" so the model can relay it to the customer.
package orders
