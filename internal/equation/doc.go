// Package equation implements the relaxation-dispersion equation families
// fitted by relaxfit: CPMG dispersion, CEST intensity profiles, R1rho
// approximations and plain exponential decays.
//
// Every family is a stateless value implementing Family. Calculate is pure
// and safe for concurrent use; guesses and bounds are derived from the data
// without iteration.
//
// Families are looked up by kind and name, case-insensitively:
//
//	eq, err := equation.Lookup(equation.CPMG, "cpmgfast")
//
// Chemical shifts are in ppm, fields in MHz and rates in 1/s. Offsets and
// shift differences are converted to angular frequency with 2π·ppm·field.
package equation
