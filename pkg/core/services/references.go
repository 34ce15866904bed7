package services

import (
	"time"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

// ResolveReferences 为批次中出现的每个标准气建立参考浓度序列
// 参考表中每一条 (通道, 浓度, 有效期) 赋值给有效期 [start, end] 内的所有行;
// 未给出结束时间的条目以 now 为上界. 同一通道的多条按表中顺序覆盖.
// 批次中未出现的标准气被忽略.
func ResolveReferences(batch *domain.Batch, table domain.ReferenceTable, now time.Time) (*domain.Batch, error) {
	refs := make(map[string][]float64)
	var order []string

	for _, entry := range table {
		if !batch.HasMode(domain.StandardMode(entry.StandardID)) {
			continue
		}
		col, ok := refs[entry.StandardID]
		if !ok {
			col = domain.NaNs(batch.Len())
			refs[entry.StandardID] = col
			order = append(order, entry.StandardID)
		}
		for i, t := range batch.Times() {
			if entry.Covers(t, now) {
				col[i] = entry.CO2
			}
		}
	}

	var err error
	for _, id := range order {
		track, _ := batch.Track(id)
		track.Reference = refs[id]
		if batch, err = batch.WithTrack(id, track); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// UnusedReferences 返回参考表中有条目但批次中没有对应运行模式的标准气 (按表中顺序)
func UnusedReferences(batch *domain.Batch, table domain.ReferenceTable) []string {
	var out []string
	for _, id := range table.Standards() {
		if !batch.HasMode(domain.StandardMode(id)) {
			out = append(out, id)
		}
	}
	return out
}
