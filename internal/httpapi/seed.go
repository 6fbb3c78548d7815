package httpapi

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"finsview/internal/domain"
)

// seedSymbol describes one symbol of the dev dataset. price is the latest
// close; the weekly history is a seeded random walk scaled to end there.
type seedSymbol struct {
	ticker, name, exchange, typ string
	sector, industry, country   string
	currency, isin, website     string
	inception, oldestPrice      string // YYYY-MM-DD, "" for unknown inception
	mcap                        float64
	price                       float64
	drift, vol                  float64 // annualized
	inactive                    bool
}

var seedSymbols = []seedSymbol{
	{"AAPL", "Apple Inc.", "NASDAQ", "stock", "Technology", "Consumer Electronics", "US", "USD", "US0378331005", "https://www.apple.com", "1980-12-12", "1985-01-01", 3.4e12, 227.5, 0.22, 0.28, false},
	{"MSFT", "Microsoft Corporation", "NASDAQ", "stock", "Technology", "Software", "US", "USD", "US5949181045", "https://www.microsoft.com", "1986-03-13", "1986-03-13", 3.1e12, 416.1, 0.18, 0.24, false},
	{"NVDA", "NVIDIA Corporation", "NASDAQ", "stock", "Technology", "Semiconductors", "US", "USD", "US67066G1040", "https://www.nvidia.com", "1999-01-22", "1999-01-22", 3.3e12, 134.2, 0.35, 0.48, false},
	{"AMZN", "Amazon.com, Inc.", "NASDAQ", "stock", "Consumer Cyclical", "Internet Retail", "US", "USD", "US0231351067", "https://www.amazon.com", "1997-05-15", "1997-05-15", 2.0e12, 188.4, 0.25, 0.34, false},
	{"GOOGL", "Alphabet Inc.", "NASDAQ", "stock", "Communication Services", "Internet Content", "US", "USD", "US02079K3059", "https://abc.xyz", "2004-08-19", "2004-08-19", 2.1e12, 167.3, 0.17, 0.27, false},
	{"TSLA", "Tesla, Inc.", "NASDAQ", "stock", "Consumer Cyclical", "Auto Manufacturers", "US", "USD", "US88160R1014", "https://www.tesla.com", "2010-06-29", "2010-06-29", 7.9e11, 248.5, 0.30, 0.60, false},
	{"JPM", "JPMorgan Chase & Co.", "NYSE", "stock", "Financial Services", "Banks", "US", "USD", "US46625H1005", "https://www.jpmorganchase.com", "1980-03-17", "1985-01-01", 6.1e11, 214.9, 0.09, 0.26, false},
	{"JNJ", "Johnson & Johnson", "NYSE", "stock", "Healthcare", "Drug Manufacturers", "US", "USD", "US4781601046", "https://www.jnj.com", "1944-09-25", "1985-01-01", 3.8e11, 157.2, 0.06, 0.16, false},
	{"XOM", "Exxon Mobil Corporation", "NYSE", "stock", "Energy", "Oil & Gas Integrated", "US", "USD", "US30231G1022", "https://corporate.exxonmobil.com", "1920-01-01", "1985-01-01", 5.0e11, 117.6, 0.04, 0.24, false},
	{"KO", "The Coca-Cola Company", "NYSE", "stock", "Consumer Defensive", "Beverages", "US", "USD", "US1912161007", "https://www.coca-colacompany.com", "1919-09-05", "1985-01-01", 2.9e11, 67.8, 0.05, 0.15, false},
	{"SAP", "SAP SE", "XETRA", "stock", "Technology", "Software", "DE", "EUR", "DE0007164600", "https://www.sap.com", "1988-11-04", "1990-01-01", 2.6e11, 223.1, 0.12, 0.27, false},
	{"ASML", "ASML Holding N.V.", "EURONEXT", "stock", "Technology", "Semiconductor Equipment", "NL", "EUR", "NL0010273215", "https://www.asml.com", "1995-03-15", "1995-03-15", 2.8e11, 712.0, 0.24, 0.38, false},
	{"NESN", "Nestlé S.A.", "SIX", "stock", "Consumer Defensive", "Packaged Foods", "CH", "CHF", "CH0038863350", "https://www.nestle.com", "1905-01-01", "1990-01-01", 2.4e11, 86.4, 0.03, 0.14, false},
	{"NOVN", "Novartis AG", "SIX", "stock", "Healthcare", "Drug Manufacturers", "CH", "CHF", "CH0012005267", "https://www.novartis.com", "1996-12-20", "1996-12-20", 2.2e11, 94.1, 0.05, 0.18, false},
	{"SHEL", "Shell plc", "LSE", "stock", "Energy", "Oil & Gas Integrated", "GB", "GBP", "GB00BP6MXD84", "https://www.shell.com", "1907-01-01", "1990-01-01", 2.1e11, 2541.5, 0.03, 0.25, false},
	{"TM", "Toyota Motor Corporation", "NYSE", "stock", "Consumer Cyclical", "Auto Manufacturers", "JP", "USD", "US8923313071", "https://global.toyota", "1999-09-29", "1999-09-29", 2.5e11, 178.3, 0.07, 0.22, false},
	{"BABA", "Alibaba Group Holding Limited", "NYSE", "stock", "Consumer Cyclical", "Internet Retail", "CN", "USD", "US01609W1027", "https://www.alibabagroup.com", "2014-09-19", "2014-09-19", 2.1e11, 88.7, -0.02, 0.42, false},
	{"SHOP", "Shopify Inc.", "NYSE", "stock", "Technology", "Software", "CA", "USD", "CA82509L1076", "https://www.shopify.com", "2015-05-21", "2015-05-21", 1.0e11, 78.2, 0.30, 0.62, false},
	{"PLTR", "Palantir Technologies Inc.", "NYSE", "stock", "Technology", "Software", "US", "USD", "US69608A1088", "https://www.palantir.com", "2020-09-30", "2020-09-30", 9.3e10, 41.6, 0.40, 0.70, false},
	{"RIVN", "Rivian Automotive, Inc.", "NASDAQ", "stock", "Consumer Cyclical", "Auto Manufacturers", "US", "USD", "US76954A1034", "https://rivian.com", "2021-11-10", "2021-11-10", 1.1e10, 10.9, -0.30, 0.75, false},
	{"SIRI", "Sirius XM Holdings Inc.", "NASDAQ", "stock", "Communication Services", "Entertainment", "US", "USD", "US82968B1035", "https://www.siriusxm.com", "1994-09-13", "1994-09-13", 9.2e9, 23.4, -0.05, 0.40, false},
	{"PENNY", "Penny Minerals Corp.", "OTC", "stock", "Basic Materials", "Other Precious Metals", "CA", "USD", "", "", "", "2012-04-02", 4.2e6, 0.0042, -0.10, 0.90, false},
	{"SPY", "SPDR S&P 500 ETF Trust", "NYSE", "etf", "", "", "US", "USD", "US78462F1030", "https://www.ssga.com", "1993-01-22", "1993-01-22", 0, 571.3, 0.08, 0.18, false},
	{"TWTR", "Twitter, Inc.", "NYSE", "stock", "Communication Services", "Internet Content", "US", "USD", "US90184L1026", "", "2013-11-07", "2013-11-07", 4.1e10, 53.7, 0.02, 0.50, true},
}

// seedRating is a rating recorded relative to the seeding time.
type seedRating struct {
	ticker string
	rating int
	notes  string
	ago    time.Duration
}

var seedRatings = []seedRating{
	{"NVDA", 2, "Data center demand looks durable.", 120 * 24 * time.Hour},
	{"NVDA", 4, "Raising after earnings beat.", 10 * 24 * time.Hour},
	{"AAPL", 3, "", 60 * 24 * time.Hour},
	{"TSLA", -2, "Margins under pressure.", 30 * 24 * time.Hour},
	{"NESN", 1, "Defensive holding, slow grower.", 5 * 24 * time.Hour},
}

var seedFavorites = []string{"AAPL", "NVDA", "NESN"}

// seedErrors is in chronological order.
var seedErrors = []struct {
	source, errorType, message, details string
	ago                                 time.Duration
}{
	{"analysis.worker", "timeout", "Analysis worker exceeded deadline", "", 26 * time.Hour},
	{"fmp.prices", "rate_limit", "Too many requests to price provider", "HTTP 429 after 3 retries", 3 * time.Hour},
}

// ---------------------------------------------------------------------------
// Synthetic prices
// ---------------------------------------------------------------------------

func seedFor(ticker string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	return h.Sum64()
}

func mondayOf(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	wd := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -wd)
}

// weeklyBars generates weekly bars from start to end whose last close is
// s.price.
func weeklyBars(s seedSymbol, start, end time.Time) []domain.PriceBar {
	r := rand.New(rand.NewPCG(seedFor(s.ticker), 0x9e3779b97f4a7c15))
	step := math.Sqrt(1.0 / 52)

	price := 1.0
	var bars []domain.PriceBar
	for d := mondayOf(start); !d.After(end); d = d.AddDate(0, 0, 7) {
		open := price
		ret := s.drift/52 + s.vol*step*r.NormFloat64()
		price = open * math.Exp(ret)
		high := math.Max(open, price) * (1 + math.Abs(r.NormFloat64())*0.01)
		low := math.Min(open, price) * (1 - math.Abs(r.NormFloat64())*0.01)
		bars = append(bars, domain.PriceBar{
			Date:         d,
			Open:         open,
			High:         high,
			Low:          low,
			Close:        price,
			Avg:          (open + high + low + price) / 4,
			SymbolTicker: s.ticker,
		})
	}
	if len(bars) == 0 {
		return nil
	}

	scale := s.price / bars[len(bars)-1].Close
	for i := range bars {
		bars[i].Open *= scale
		bars[i].High *= scale
		bars[i].Low *= scale
		bars[i].Close *= scale
		bars[i].Avg *= scale
	}
	setYoY(bars, 52)
	return bars
}

// monthlyBars folds weekly bars into calendar months dated on the 1st.
func monthlyBars(weekly []domain.PriceBar) []domain.PriceBar {
	var out []domain.PriceBar
	var n int
	for _, w := range weekly {
		month := time.Date(w.Date.Year(), w.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		if len(out) == 0 || !out[len(out)-1].Date.Equal(month) {
			if n > 0 {
				out[len(out)-1].Avg /= float64(n)
			}
			out = append(out, domain.PriceBar{
				Date: month, Open: w.Open, High: w.High, Low: w.Low,
				SymbolTicker: w.SymbolTicker,
			})
			n = 0
		}
		m := &out[len(out)-1]
		m.High = math.Max(m.High, w.High)
		m.Low = math.Min(m.Low, w.Low)
		m.Close = w.Close
		m.Avg += w.Avg
		n++
	}
	if n > 0 {
		out[len(out)-1].Avg /= float64(n)
	}
	setYoY(out, 12)
	return out
}

// setYoY fills the year-over-year change of Avg in percent.
func setYoY(bars []domain.PriceBar, lag int) {
	for i := lag; i < len(bars); i++ {
		prev := bars[i-lag].Avg
		if prev <= 0 {
			continue
		}
		v := (bars[i].Avg/prev - 1) * 100
		bars[i].YoY = &v
	}
}
