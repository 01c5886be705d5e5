package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/encodeous/gsqr/state"
)

// Load replaces the store contents with the csv file at path. One row per
// node: id, the vector components, then the bias. Malformed rows are
// skipped; a component that fails to parse becomes 0 without dropping the
// row. If the file cannot be opened the store is left exactly as it was.
func (st *Store) Load(path string) (loaded, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening embedding file: %w", err)
	}
	defer f.Close()

	st.vectors = make(map[state.NodeId][]float64)
	st.biases = make(map[state.NodeId]float64)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ",")
		if len(fields) < 2+state.EmbeddingDim {
			skipped++
			continue
		}
		id, perr := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
		if perr != nil {
			skipped++
			continue
		}
		vec := make([]float64, state.EmbeddingDim)
		for i := range vec {
			vec[i] = parseComponent(fields[1+i])
		}
		st.vectors[state.NodeId(id)] = vec
		st.biases[state.NodeId(id)] = parseComponent(fields[1+state.EmbeddingDim])
		loaded++
	}
	if serr := scanner.Err(); serr != nil {
		return loaded, skipped, fmt.Errorf("reading embedding file: %w", serr)
	}
	return loaded, skipped, nil
}

// parseComponent reads one numeric field, turning garbage into 0 so a
// single corrupt component does not lose the rest of the row.
func parseComponent(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0
	}
	return v
}

// Save writes every entry to path in ascending id order. Values are
// rendered with the shortest representation that round-trips exactly.
func (st *Store) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating embedding file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, id := range st.Ids() {
		vec := st.vectors[id]
		if len(vec) != state.EmbeddingDim {
			continue
		}
		w.WriteString(strconv.FormatUint(uint64(id), 10))
		for _, v := range vec {
			w.WriteByte(',')
			w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		w.WriteByte(',')
		w.WriteString(strconv.FormatFloat(st.biases[id], 'g', -1, 64))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing embedding file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing embedding file: %w", err)
	}
	return nil
}
