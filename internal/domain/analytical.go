package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BlackScholesCall devuelve el precio Black-Scholes de un call europeo sin dividendos.
func BlackScholesCall(spot, strike, maturity, r, sigma float64) float64 {
	d1, d2 := dTerms(spot, strike, maturity, r, sigma)
	return spot*normCDF(d1) - strike*math.Exp(-r*maturity)*normCDF(d2)
}

// BlackScholesPut devuelve el precio Black-Scholes de un put europeo sin dividendos.
func BlackScholesPut(spot, strike, maturity, r, sigma float64) float64 {
	d1, d2 := dTerms(spot, strike, maturity, r, sigma)
	return strike*math.Exp(-r*maturity)*normCDF(-d2) - spot*normCDF(-d1)
}

// DownAndOutCall devuelve el precio cerrado de un call down-and-out con H ≤ K:
//
//	C = BS(S0, K) − (H/S0)^(2α/σ²) · BS(H²/S0, K),  α = r − σ²/2
//
// Si S0 ≤ H la opción ya está anulada y vale 0.
func DownAndOutCall(spot, strike, maturity, r, sigma, barrier float64) float64 {
	if spot <= barrier {
		return 0
	}
	alpha := Trend(r, sigma)
	vanilla := BlackScholesCall(spot, strike, maturity, r, sigma)
	reflection := math.Pow(barrier/spot, 2*alpha/(sigma*sigma))
	mirrored := BlackScholesCall(barrier*barrier/spot, strike, maturity, r, sigma)
	return vanilla - reflection*mirrored
}

// Reference devuelve el precio analítico de referencia para el contrato,
// usado solo como oráculo de comparación de los modelos de lattice.
// Cubre calls down-and-out y down-and-in (por paridad) con H ≤ K.
func Reference(opt Option, mkt Market) (float64, error) {
	if err := opt.Validate(); err != nil {
		return 0, err
	}
	if err := mkt.Validate(); err != nil {
		return 0, err
	}
	if opt.Type != Call || !opt.BarrierType.IsDown() {
		return 0, fmt.Errorf("domain.Reference: %s %s: %w", opt.BarrierType, opt.Type, ErrUnsupported)
	}
	if opt.Barrier > opt.Strike {
		return 0, fmt.Errorf("domain.Reference: barrier %v above strike %v: %w", opt.Barrier, opt.Strike, ErrUnsupported)
	}

	out := DownAndOutCall(mkt.Spot, opt.Strike, opt.Maturity, mkt.Rate, mkt.Sigma, opt.Barrier)
	if opt.BarrierType.IsOut() {
		return out, nil
	}
	return BlackScholesCall(mkt.Spot, opt.Strike, opt.Maturity, mkt.Rate, mkt.Sigma) - out, nil
}

func dTerms(spot, strike, maturity, r, sigma float64) (d1, d2 float64) {
	sqrtT := math.Sqrt(maturity)
	d1 = (math.Log(spot/strike) + (r+sigma*sigma/2)*maturity) / (sigma * sqrtT)
	d2 = d1 - sigma*sqrtT
	return d1, d2
}

func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
