// Package firmware contains the domain types of the metadata pipeline.
//
// Remote is a distribution channel with dirty tracking, a build counter and a
// build lease (Claim). Firmware records carry one or more Component
// descriptors, each describing a product at one version. Components order by
// version, newest first.
package firmware
