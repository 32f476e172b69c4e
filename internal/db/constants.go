package db

// timeLayout is the fixed-width UTC layout used for every stored timestamp so
// that lexical order matches chronological order.
const timeLayout = "2006-01-02 15:04:05.000"

// singletonID is the row id of the single-row credentials and quota tables.
const singletonID = 1
