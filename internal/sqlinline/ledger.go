package sqlinline

const QCreditAccount = `--sql 99f70435-5d3e-4c4c-88d4-f5c2332c0478
insert into account_balances(identity, amount, updated_at)
values ($1::text, $2::numeric, $3::timestamptz)
on conflict (identity) do update
set amount = account_balances.amount + excluded.amount,
    updated_at = excluded.updated_at;
`

const QSelectAccountBalance = `--sql 46a270b4-e865-46e6-99f2-e39620b39e3b
select amount::text
from account_balances
where identity = $1::text;
`

const QInsertLedgerEntry = `--sql c1119d6c-aed3-45d3-939f-d23895807f68
insert into ledger_entries(campaign_id, request_idx, kind, from_identity, to_identity, amount, created_at)
values ($1::uuid, $2::int, $3::text, $4::text, $5::text, $6::numeric, $7::timestamptz);
`
