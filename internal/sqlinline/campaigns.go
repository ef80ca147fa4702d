package sqlinline

const QInsertCampaign = `--sql fa2dee53-8fea-4047-9aed-ab9525b24838
insert into campaigns(id, manager, minimum_contribution, balance, created_at)
values ($1::uuid, $2::text, $3::numeric, 0, $4::timestamptz);
`

const QListCampaignIDs = `--sql 27c59a73-8f10-4d1d-aa51-b016f6c6a8df
select id::text
from campaigns
order by seq asc;
`

const QSelectCampaign = `--sql d66a338e-76bd-4466-9f87-b575a1930bb6
select id::text, manager, minimum_contribution::text, balance::text, created_at
from campaigns
where id = $1::uuid;
`

const QSelectCampaignForUpdate = `--sql 4d6662c1-d99d-41ef-8506-20f887e199d1
select id::text
from campaigns
where id = $1::uuid
for update;
`

const QListContributors = `--sql 0139abbe-23df-4219-9255-994611dca9af
select contributor
from campaign_contributors
where campaign_id = $1::uuid
order by first_contributed_at asc, contributor asc;
`

const QInsertContributor = `--sql 5b209dfe-77e2-4b4d-9748-c1814145670d
insert into campaign_contributors(campaign_id, contributor, total_contributed, first_contributed_at)
values ($1::uuid, $2::text, $3::numeric, $4::timestamptz)
on conflict (campaign_id, contributor) do nothing;
`

const QAddContributorTotal = `--sql 0906040f-8ee3-4fe0-9ccc-46a53bc482c4
update campaign_contributors
set total_contributed = total_contributed + $3::numeric
where campaign_id = $1::uuid and contributor = $2::text;
`

const QCreditCampaign = `--sql 67d6bd92-7a4f-4289-b013-613364dceddf
update campaigns
set balance = balance + $2::numeric,
    contributors_count = contributors_count + $3::int
where id = $1::uuid;
`

const QDebitCampaign = `--sql 8fa8daac-8847-4c28-a942-61aa2d26f48e
update campaigns
set balance = balance - $2::numeric
where id = $1::uuid and balance >= $2::numeric;
`
