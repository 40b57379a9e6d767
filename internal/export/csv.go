package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/eforoutan/LocalMorans/internal/lisa"
	"github.com/eforoutan/LocalMorans/internal/shapefile"
)

// WriteCSV writes the tabular results: the analyzed field and the LISA
// columns, one row per areal unit, no geometry and no index column.
func WriteCSV(path string, ds *shapefile.Dataset, res *lisa.Result) error {
	if ds.Len() != len(res.I) {
		return eris.Errorf("export: %d units but %d results", ds.Len(), len(res.I))
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{ds.Field, "LocMoranI", "p_value", "Z_score", "LISA_Clust"}); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}

	for i := 0; i < ds.Len(); i++ {
		row := []string{
			formatFloat(ds.Values[i]),
			formatFloat(res.I[i]),
			formatFloat(res.PValue[i]),
			formatFloat(res.ZScore[i]),
			res.Class[i].String(),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", i)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
