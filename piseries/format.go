package piseries

import (
	"strconv"

	"pi-benchmark/piseries/domain"
)

const statusLine = "HTTP/1.1 200 OK"

func formatFloat(v float64) string {
	// menor representação que faz round-trip, sem notação científica
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatBody monta `<pi>;<sum>;<acc>`; só sum tem 7 casas fixas.
func FormatBody(r domain.Result) string {
	return formatFloat(r.Pi) + ";" + strconv.FormatFloat(r.Sum, 'f', 7, 64) + ";" + formatFloat(r.Accumulator)
}

func formatResponse(r domain.Result) string {
	return statusLine + "\r\n" + "\r\n" + FormatBody(r) + "\r\n"
}
