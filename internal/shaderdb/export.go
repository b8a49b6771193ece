package shaderdb

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
)

func exportJSON(records []*Record, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

func exportCSV(records []*Record, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"ShaderID", "Stage", "Generation", "BinarySize",
		"Instructions", "HalfRegs", "FullRegs", "Spills", "Fills", "Loops", "Key",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		v := r.Variant
		record := []string{
			r.ShaderID,
			fmt.Sprintf("%d", v.Stage),
			v.Generation,
			humanize.Bytes(uint64(r.BinaryBytes)),
			humanize.Comma(int64(v.Stats.InstructionCount)),
			fmt.Sprintf("%d", v.Stats.HalfRegsUsed),
			fmt.Sprintf("%d", v.Stats.FullRegsUsed),
			fmt.Sprintf("%d", v.Stats.SpillCount),
			fmt.Sprintf("%d", v.Stats.FillCount),
			fmt.Sprintf("%d", v.Stats.LoopCount),
			v.Key,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// exportText writes a verbose, field-by-field dump of every record using
// kr/pretty's "%# v" Go-syntax-with-struct-field-names formatter — the
// usage its own documentation leads with — for developers who want to
// diff two variants' full descriptors by eye rather than parse JSON.
func exportText(records []*Record, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, r := range records {
		if _, err := pretty.Fprintf(file, "# %s (%s bytes)\n%# v\n\n", r.ShaderID, humanize.Bytes(uint64(r.BinaryBytes)), r.Variant); err != nil {
			return err
		}
	}
	return nil
}
