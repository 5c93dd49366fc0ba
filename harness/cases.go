package harness

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pteich/elastic-sample-data/elastic"
	"github.com/pteich/elastic-sample-data/seed"
)

const searchSize = 100

// Cases returns all checks in a stable order.
func Cases() []Case {
	return []Case{
		{Name: "index-creation", Run: indexCreation},
		{Name: "document-indexing", Run: documentIndexing},
		{Name: "document-retrieval", Run: documentRetrieval},
		{Name: "create-without-id", Run: createWithoutID},
		{Name: "create-with-id", Run: createWithID},
		{Name: "create-duplicate-id", Run: createDuplicateID},
		{Name: "replace-existing", Run: replaceExisting},
		{Name: "upsert-creates", Run: upsertCreates},
		{Name: "partial-update", Run: partialUpdate},
		{Name: "version-conflict", Run: versionConflict},
		{Name: "delete-existing", Run: deleteExisting},
		{Name: "delete-missing", Run: deleteMissing},
		{Name: "delete-by-query", Run: deleteByQuery},
		{Name: "delete-and-recreate", Run: deleteAndRecreate},
		{Name: "delete-with-refresh", Run: deleteWithRefresh},
		{Name: "bulk-delete", Run: bulkDelete},
		{Name: "get-missing", Run: getMissing},
		{Name: "update-missing", Run: updateMissing},
		{Name: "bulk-mixed", Run: bulkMixed},
	}
}

func expectEqual(what string, want, got any) error {
	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("%s: want %v, got %v", what, want, got)
	}
	return nil
}

func expectConflict(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: want conflict, got success", what)
	}
	if !elastic.IsConflict(err) {
		return fmt.Errorf("%s: want conflict, got %w", what, err)
	}
	return nil
}

func expectNotFound(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: want not found, got success", what)
	}
	if !elastic.IsNotFound(err) {
		return fmt.Errorf("%s: want not found, got %w", what, err)
	}
	return nil
}

func (h *Harness) get(ctx context.Context, id string) (elastic.Document, error) {
	var doc elastic.Document
	res, err := h.store.Get(ctx, h.index, id)
	if err != nil {
		return doc, fmt.Errorf("get %s: %w", id, err)
	}
	if err := res.Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", id, err)
	}
	return doc, nil
}

func (h *Harness) expectDoc(ctx context.Context, id string, want elastic.Document) error {
	got, err := h.get(ctx, id)
	if err != nil {
		return err
	}
	return expectEqual("document "+id, want, got)
}

func (h *Harness) expectExists(ctx context.Context, id string, want bool) error {
	ok, err := h.store.Exists(ctx, h.index, id)
	if err != nil {
		return fmt.Errorf("exists %s: %w", id, err)
	}
	return expectEqual("exists "+id, want, ok)
}

func (h *Harness) put(ctx context.Context, id string, doc any, opts ...elastic.WriteOption) (*elastic.WriteResult, error) {
	res, err := h.store.Index(ctx, h.index, id, doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", id, err)
	}
	return res, nil
}

func (h *Harness) refresh(ctx context.Context) error {
	if err := h.store.Refresh(ctx, h.index); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

func (h *Harness) matchAll(ctx context.Context) (*elastic.SearchResult, error) {
	res, err := h.store.Search(ctx, h.index, elastic.NewMatchAllQuery(), searchSize)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

func (h *Harness) seedSamples(ctx context.Context) error {
	return seed.New(h.store, h.index, h.log).Run(ctx, seed.SampleDocuments)
}

func indexCreation(ctx context.Context, h *Harness) error {
	if err := h.Cleanup(ctx); err != nil {
		return err
	}

	exists, err := h.store.IndexExists(ctx, h.index)
	if err != nil {
		return err
	}
	if err := expectEqual("index exists after delete", false, exists); err != nil {
		return err
	}

	if err := h.store.CreateIndex(ctx, h.index); err != nil {
		return err
	}

	exists, err = h.store.IndexExists(ctx, h.index)
	if err != nil {
		return err
	}
	if err := expectEqual("index exists after create", true, exists); err != nil {
		return err
	}

	if err := h.store.CreateIndex(ctx, h.index); err == nil {
		return fmt.Errorf("second create of index %s: want error, got success", h.index)
	}
	return nil
}

func documentIndexing(ctx context.Context, h *Harness) error {
	if err := h.seedSamples(ctx); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	res, err := h.matchAll(ctx)
	if err != nil {
		return err
	}
	if err := expectEqual("total hits", int64(len(seed.SampleDocuments)), res.Total()); err != nil {
		return err
	}

	titles := make(map[string]string, len(res.Hits()))
	for _, hit := range res.Hits() {
		var doc elastic.Document
		if err := elastic.JSON.Unmarshal(hit.GetSource(), &doc); err != nil {
			return fmt.Errorf("decode hit %s: %w", hit.ID, err)
		}
		titles[hit.ID] = doc.Title
	}

	want := make(map[string]string, len(seed.SampleDocuments))
	for i, doc := range seed.SampleDocuments {
		want[seed.ID(i)] = doc.Title
	}
	return expectEqual("titles by id", want, titles)
}

func documentRetrieval(ctx context.Context, h *Harness) error {
	if err := h.seedSamples(ctx); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}
	return h.expectDoc(ctx, seed.ID(0), seed.SampleDocuments[0])
}

func createWithoutID(ctx context.Context, h *Harness) error {
	doc := elastic.Document{Title: "POSTテスト", Body: "自動生成されたID", Tag: "post-test"}

	res, err := h.put(ctx, "", doc)
	if err != nil {
		return err
	}
	if err := expectEqual("result", elastic.ResultCreated, res.Result); err != nil {
		return err
	}
	if res.ID == "" {
		return fmt.Errorf("no id assigned")
	}

	if err := h.refresh(ctx); err != nil {
		return err
	}
	return h.expectDoc(ctx, res.ID, doc)
}

func createWithID(ctx context.Context, h *Harness) error {
	doc := elastic.Document{Title: "POST ID指定", Body: "ID=100で作成", Tag: "post-with-id"}

	res, err := h.put(ctx, "100", doc, elastic.CreateOnly())
	if err != nil {
		return err
	}
	if err := expectEqual("result", elastic.ResultCreated, res.Result); err != nil {
		return err
	}
	if err := expectEqual("id", "100", res.ID); err != nil {
		return err
	}

	if err := h.refresh(ctx); err != nil {
		return err
	}
	return h.expectDoc(ctx, "100", doc)
}

func createDuplicateID(ctx context.Context, h *Harness) error {
	first := elastic.Document{Title: "最初", Body: "1回目", Tag: "test"}
	if _, err := h.put(ctx, "200", first, elastic.CreateOnly()); err != nil {
		return err
	}

	second := elastic.Document{Title: "2回目", Body: "失敗するはず", Tag: "test"}
	_, err := h.store.Index(ctx, h.index, "200", second, elastic.CreateOnly())
	if err := expectConflict("second create", err); err != nil {
		return err
	}

	return h.expectDoc(ctx, "200", first)
}

func replaceExisting(ctx context.Context, h *Harness) error {
	original := map[string]any{
		"title": "更新前",
		"body":  "古いコンテンツ",
		"tag":   "old",
		"note":  "dropped on replace",
	}
	if _, err := h.put(ctx, "300", original); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	updated := elastic.Document{Title: "更新後", Body: "新しいコンテンツ", Tag: "new"}
	res, err := h.put(ctx, "300", updated)
	if err != nil {
		return err
	}
	if err := expectEqual("result", elastic.ResultUpdated, res.Result); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	got, err := h.store.Get(ctx, h.index, "300")
	if err != nil {
		return err
	}
	var source map[string]any
	if err := got.Decode(&source); err != nil {
		return err
	}
	return expectEqual("source", map[string]any{
		"title": updated.Title,
		"body":  updated.Body,
		"tag":   updated.Tag,
	}, source)
}

func upsertCreates(ctx context.Context, h *Harness) error {
	doc := elastic.Document{Title: "PUT新規", Body: "upsert動作", Tag: "put-upsert"}

	res, err := h.put(ctx, "400", doc)
	if err != nil {
		return err
	}
	if err := expectEqual("result", elastic.ResultCreated, res.Result); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}
	return h.expectDoc(ctx, "400", doc)
}

func partialUpdate(ctx context.Context, h *Harness) error {
	original := elastic.Document{Title: "部分更新前", Body: "元の本文", Tag: "original"}
	if _, err := h.put(ctx, "500", original); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	res, err := h.store.Update(ctx, h.index, "500", map[string]any{"title": "部分更新後"})
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if err := expectEqual("result", elastic.ResultUpdated, res.Result); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	want := original
	want.Title = "部分更新後"
	return h.expectDoc(ctx, "500", want)
}

func versionConflict(ctx context.Context, h *Harness) error {
	res, err := h.put(ctx, "600", elastic.Document{Title: "バージョンテスト", Body: "初期", Tag: "v1"})
	if err != nil {
		return err
	}
	seqNo, primaryTerm := res.SeqNo, res.PrimaryTerm

	second := elastic.Document{Title: "更新1", Body: "正常更新", Tag: "v2"}
	if _, err := h.put(ctx, "600", second, elastic.IfMatch(seqNo, primaryTerm)); err != nil {
		return err
	}

	third := elastic.Document{Title: "更新2", Body: "失敗するはず", Tag: "v3"}
	_, err = h.store.Index(ctx, h.index, "600", third, elastic.IfMatch(seqNo, primaryTerm))
	if err := expectConflict("write with stale sequence number", err); err != nil {
		return err
	}

	return h.expectDoc(ctx, "600", second)
}

func deleteExisting(ctx context.Context, h *Harness) error {
	doc := elastic.Document{Title: "削除対象", Body: "このドキュメントは削除される", Tag: "delete-test"}
	if _, err := h.put(ctx, "700", doc); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}
	if err := h.expectExists(ctx, "700", true); err != nil {
		return err
	}

	res, err := h.store.Delete(ctx, h.index, "700")
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := expectEqual("result", elastic.ResultDeleted, res.Result); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}
	if err := h.expectExists(ctx, "700", false); err != nil {
		return err
	}

	_, err = h.store.Delete(ctx, h.index, "700")
	return expectNotFound("second delete", err)
}

func deleteMissing(ctx context.Context, h *Harness) error {
	_, err := h.store.Delete(ctx, h.index, "999")
	return expectNotFound("delete", err)
}

func deleteByQuery(ctx context.Context, h *Harness) error {
	docs := []elastic.Document{
		{Title: "削除1", Body: "削除対象", Tag: "to-delete"},
		{Title: "削除2", Body: "削除対象", Tag: "to-delete"},
		{Title: "保持", Body: "残すべき", Tag: "keep"},
	}
	for i, doc := range docs {
		if _, err := h.put(ctx, fmt.Sprint(800+i), doc); err != nil {
			return err
		}
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	res, err := h.matchAll(ctx)
	if err != nil {
		return err
	}
	if err := expectEqual("total before delete", int64(3), res.Total()); err != nil {
		return err
	}

	deleted, err := h.store.DeleteByQuery(ctx, h.index, elastic.NewMatchQuery("tag", "to-delete"))
	if err != nil {
		return fmt.Errorf("delete by query: %w", err)
	}
	if err := expectEqual("deleted", int64(2), deleted); err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	res, err = h.matchAll(ctx)
	if err != nil {
		return err
	}
	if err := expectEqual("total after delete", int64(1), res.Total()); err != nil {
		return err
	}

	var remaining elastic.Document
	if err := elastic.JSON.Unmarshal(res.Hits()[0].GetSource(), &remaining); err != nil {
		return err
	}
	return expectEqual("remaining tag", "keep", remaining.Tag)
}

func deleteAndRecreate(ctx context.Context, h *Harness) error {
	first, err := h.put(ctx, "900", elastic.Document{Title: "最初", Body: "初回作成", Tag: "v1"})
	if err != nil {
		return err
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	if _, err := h.store.Delete(ctx, h.index, "900"); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	doc := elastic.Document{Title: "2回目", Body: "再作成", Tag: "v2"}
	second, err := h.put(ctx, "900", doc)
	if err != nil {
		return err
	}
	if second.Version <= first.Version {
		return fmt.Errorf("version after recreate: want > %d, got %d", first.Version, second.Version)
	}

	if err := h.refresh(ctx); err != nil {
		return err
	}
	return h.expectDoc(ctx, "900", doc)
}

func deleteWithRefresh(ctx context.Context, h *Harness) error {
	doc := elastic.Document{Title: "即座削除", Body: "refresh=trueでテスト", Tag: "refresh-test"}
	if _, err := h.put(ctx, "1000", doc, elastic.WithRefresh()); err != nil {
		return err
	}

	res, err := h.store.Delete(ctx, h.index, "1000", elastic.WithRefresh())
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := expectEqual("result", elastic.ResultDeleted, res.Result); err != nil {
		return err
	}

	return h.expectExists(ctx, "1000", false)
}

func bulkDelete(ctx context.Context, h *Harness) error {
	for i := 1100; i < 1105; i++ {
		doc := elastic.Document{Title: fmt.Sprintf("Doc%d", i), Body: "バルク削除テスト", Tag: "bulk"}
		if _, err := h.put(ctx, fmt.Sprint(i), doc); err != nil {
			return err
		}
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}

	var actions []elastic.BulkAction
	for i := 1100; i < 1103; i++ {
		actions = append(actions, elastic.BulkDelete(fmt.Sprint(i)))
	}

	res, err := h.store.Bulk(ctx, h.index, actions)
	if err != nil {
		return fmt.Errorf("bulk: %w", err)
	}
	if res.Errors {
		return fmt.Errorf("bulk reported errors: %w", res.Err())
	}
	if err := expectEqual("bulk items", len(actions), len(res.Items)); err != nil {
		return err
	}

	if err := h.refresh(ctx); err != nil {
		return err
	}
	for i := 1100; i < 1105; i++ {
		if err := h.expectExists(ctx, fmt.Sprint(i), i >= 1103); err != nil {
			return err
		}
	}
	return nil
}

func getMissing(ctx context.Context, h *Harness) error {
	_, err := h.store.Get(ctx, h.index, "999")
	return expectNotFound("get", err)
}

func updateMissing(ctx context.Context, h *Harness) error {
	_, err := h.store.Update(ctx, h.index, "999", map[string]any{"title": "missing"})
	return expectNotFound("update", err)
}

func bulkMixed(ctx context.Context, h *Harness) error {
	if _, err := h.put(ctx, "a", elastic.Document{Title: "A", Body: "bulk", Tag: "mixed"}); err != nil {
		return err
	}

	actions := []elastic.BulkAction{
		elastic.BulkCreate("b", elastic.Document{Title: "B", Body: "bulk", Tag: "mixed"}),
		elastic.BulkCreate("a", elastic.Document{Title: "A2", Body: "bulk", Tag: "mixed"}),
		elastic.BulkIndex("c", elastic.Document{Title: "C", Body: "bulk", Tag: "mixed"}),
		elastic.BulkUpdate("c", map[string]any{"title": "C2"}),
		elastic.BulkDelete("a"),
	}

	res, err := h.store.Bulk(ctx, h.index, actions, elastic.WithRefresh())
	if err != nil {
		return fmt.Errorf("bulk: %w", err)
	}
	if err := expectEqual("bulk errors", true, res.Errors); err != nil {
		return err
	}
	if err := expectEqual("bulk items", len(actions), len(res.Items)); err != nil {
		return err
	}

	failed := res.Failed()
	if err := expectEqual("failed items", 1, len(failed)); err != nil {
		return err
	}
	if err := expectEqual("failed id", "a", failed[0].ID); err != nil {
		return err
	}
	if err := expectConflict("bulk create of existing id", res.Err()); err != nil {
		return err
	}

	wantResults := []string{elastic.ResultCreated, "", elastic.ResultCreated, elastic.ResultUpdated, elastic.ResultDeleted}
	for i, item := range res.Items {
		if err := expectEqual(fmt.Sprintf("item %d op", i), actions[i].Op, item.Op); err != nil {
			return err
		}
		if item.Failed() {
			continue
		}
		if err := expectEqual(fmt.Sprintf("item %d result", i), wantResults[i], item.Result); err != nil {
			return err
		}
	}

	if err := h.expectExists(ctx, "a", false); err != nil {
		return err
	}
	if err := h.expectExists(ctx, "b", true); err != nil {
		return err
	}
	return h.expectDoc(ctx, "c", elastic.Document{Title: "C2", Body: "bulk", Tag: "mixed"})
}
