// Package tourkit 是一个混合游览推荐引擎。
//
// 离线：catalog 清洗原始商户/评论数据，train 依次训练内容相似度（TF-IDF）、
// 协同过滤（隐因子）、词法检索（BM25）与排序模型（GBDT/LR），产出不可变的
// snapshot 并写入 store。
//
// 在线：serving 持有当前快照，把推荐、排序、搜索、相似查询组织为 pipeline
// 的 Node 链（recall -> filter -> rank -> rerank），由 server 暴露为 HTTP 接口。
package tourkit
