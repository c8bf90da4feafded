// MIT License
// Copyright (c) 2025 Cezame

// Terminal dashboard for a running xdpd daemon's eBPF stats map
// Tableau de bord terminal pour la carte de statistiques eBPF d'un démon xdpd
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cilium/ebpf"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).MarginBottom(1)
)

// counterNames mirrors the stats_map layout an xdp program built for this
// engine is expected to use: one PERCPU_ARRAY slot per counter.
var counterNames = []string{"rx_total", "tx_total", "dropped", "redirected"}

type tickMsg time.Time

type model struct {
	statsMap *ebpf.Map
	values   [4]uint64
	err      error
}

func (m model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.values, m.err = readCounters(m.statsMap)
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	var b []byte
	b = append(b, titleStyle.Render("grogu-xdp monitor")...)
	b = append(b, '\n')
	if m.err != nil {
		b = append(b, fmt.Sprintf("error reading stats: %v\n", m.err)...)
		return string(b)
	}
	for i, name := range counterNames {
		line := fmt.Sprintf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", name)), valueStyle.Render(fmt.Sprintf("%d", m.values[i])))
		b = append(b, line...)
	}
	b = append(b, "\n(q to quit)\n"...)
	return string(b)
}

// readCounters sums every CPU's value for each of the four counter slots in
// a PERCPU_ARRAY stats map.
func readCounters(m *ebpf.Map) ([4]uint64, error) {
	var out [4]uint64
	for i := range out {
		key := uint32(i)
		var perCPU []uint64
		if err := m.Lookup(&key, &perCPU); err != nil {
			return out, fmt.Errorf("lookup counter %d: %w", i, err)
		}
		var total uint64
		for _, v := range perCPU {
			total += v
		}
		out[i] = total
	}
	return out, nil
}

func main() {
	pinPath := flag.String("stats-pin", "/sys/fs/bpf/grogu_xdp_stats", "bpffs path the stats map was pinned at")
	flag.Parse()

	m, err := ebpf.LoadPinnedMap(*pinPath, nil)
	if err != nil {
		log.Fatalf("load pinned stats map at %s: %v", *pinPath, err)
	}
	defer m.Close()

	p := tea.NewProgram(model{statsMap: m})
	if _, err := p.Run(); err != nil {
		log.Fatalf("xdpmon: %v", err)
	}
}
