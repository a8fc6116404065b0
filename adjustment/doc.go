// Package adjustment implements the dosage adjustment search (C10), per
// §4.8: enumerate candidate regimens from a drug model's available
// formulations and routes, evaluate each against its active moiety's
// targets, and rank the survivors.
package adjustment
