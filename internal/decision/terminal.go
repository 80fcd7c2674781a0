package decision

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Terminal prompts on stdin/stdout, the production decision provider.
// On EOF every prompt falls back to its automatic answer.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) readLine() (string, bool) {
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func (t *Terminal) PickWinner(ranked []Candidate) int {
	fmt.Fprintln(t.out, "Candidates (eta asc, rating desc):")
	for i, c := range ranked {
		fmt.Fprintf(t.out, " %d) %s | ETA=%d min | rating=%.2f\n", i+1, c.CourierID, c.EtaMin, c.Rating)
	}
	fmt.Fprint(t.out, "Pick a courier (1..N) or Enter for auto: ")
	raw, ok := t.readLine()
	if !ok || raw == "" {
		return 0
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 1 || idx > len(ranked) {
		fmt.Fprintln(t.out, "Invalid choice, selecting automatically.")
		return 0
	}
	return idx - 1
}

func (t *Terminal) AcceptOffer(orderID, restaurant string) bool {
	fmt.Fprintf(t.out, "Offer %s (%s) - accept? (y/N) ", orderID, restaurant)
	raw, _ := t.readLine()
	return strings.EqualFold(raw, "y")
}

func (t *Terminal) PickRestaurant(names []string) int {
	fmt.Fprintln(t.out, "Restaurants:")
	for i, n := range names {
		fmt.Fprintf(t.out, " %d) %s\n", i+1, n)
	}
	return t.pickIndex("Pick a restaurant: ", len(names))
}

func (t *Terminal) PickItem(restaurant string, items []string) int {
	fmt.Fprintf(t.out, "Menu of %s:\n", restaurant)
	for i, it := range items {
		fmt.Fprintf(t.out, " %d) %s\n", i+1, it)
	}
	return t.pickIndex("Pick an item: ", len(items))
}

func (t *Terminal) RateCourier(courierID string) int {
	for {
		fmt.Fprintf(t.out, "Rate %s (1..5): ", courierID)
		raw, ok := t.readLine()
		if !ok {
			return 5
		}
		score, err := strconv.Atoi(raw)
		if err == nil && score >= 1 && score <= 5 {
			return score
		}
		fmt.Fprintln(t.out, "Invalid input.")
	}
}

func (t *Terminal) pickIndex(prompt string, n int) int {
	for {
		fmt.Fprint(t.out, prompt)
		raw, ok := t.readLine()
		if !ok {
			return 0
		}
		idx, err := strconv.Atoi(raw)
		if err == nil && idx >= 1 && idx <= n {
			return idx - 1
		}
		fmt.Fprintln(t.out, "Invalid input.")
	}
}
